package cli

import (
	"bytes"
	_ "embed"
)

// defaultConfigurationDocument lists every configuration key with its
// default. It is merged before any user configuration file.
//
//go:embed default_config.yaml
var defaultConfigurationDocument []byte

// EmbeddedDefaultConfiguration returns a copy of the embedded defaults and
// their configuration type.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return bytes.Clone(defaultConfigurationDocument), configurationTypeConstant
}

package repograph

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"
	"go.uber.org/zap"

	"github.com/temirov/cascade/internal/repository"
)

const (
	storeFilePermissionsConstant        = 0o644
	temporaryFilePatternSuffixConstant  = ".tmp-*"
	storePathMissingMessageConstant     = "store path must be provided"
	upstreamSlugFieldNameConstant       = "upstream"
	downstreamFieldNameConstant         = "downstream"
	requiredValueMessageConstant        = "value required"
	invalidInputErrorTemplateConstant   = "%s: %s"
	storeReadErrorTemplateConstant      = "unable to read repository graph %s: %w"
	storeDecodeErrorTemplateConstant    = "unable to decode repository graph %s: %w"
	storeEncodeErrorTemplateConstant    = "unable to encode repository graph: %w"
	storeWriteErrorTemplateConstant     = "unable to persist repository graph %s: %w"
	storeLoadedMessageConstant          = "repository graph loaded"
	storeInitializedMessageConstant     = "repository graph initialized empty"
	storePersistedMessageConstant       = "repository graph persisted"
	downstreamRegisteredMessageConstant = "downstream registered"
	logFieldStorePathConstant           = "store_path"
	logFieldUpstreamCountConstant       = "upstream_count"
	logFieldUpstreamConstant            = "upstream"
	logFieldDownstreamConstant          = "downstream"
)

// ErrStorePathMissing indicates the store was configured without a file path.
var ErrStorePathMissing = errors.New(storePathMissingMessageConstant)

// InvalidInputError surfaces validation issues for store mutations.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// Store is the process-wide upstream to downstream relationship graph.
type Store struct {
	path     string
	logger   *zap.Logger
	mutex    sync.RWMutex
	contents document
}

// Load reads the graph stored at path. A missing file yields an empty graph;
// any other read or decode failure is returned.
func Load(path string, logger *zap.Logger) (*Store, error) {
	trimmedPath := strings.TrimSpace(path)
	if len(trimmedPath) == 0 {
		return nil, ErrStorePathMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	store := &Store{path: trimmedPath, logger: logger, contents: newDocument()}

	fileContents, readError := os.ReadFile(trimmedPath)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			logger.Info(storeInitializedMessageConstant, zap.String(logFieldStorePathConstant, trimmedPath))
			return store, nil
		}
		return nil, fmt.Errorf(storeReadErrorTemplateConstant, trimmedPath, readError)
	}

	if len(strings.TrimSpace(string(fileContents))) > 0 {
		decoded := newDocument()
		if decodeError := json.Unmarshal(jsonc.ToJSON(fileContents), &decoded); decodeError != nil {
			return nil, fmt.Errorf(storeDecodeErrorTemplateConstant, trimmedPath, decodeError)
		}
		decoded.normalize()
		store.contents = decoded
	}

	logger.Info(
		storeLoadedMessageConstant,
		zap.String(logFieldStorePathConstant, trimmedPath),
		zap.Int(logFieldUpstreamCountConstant, len(store.contents.Repositories)),
	)

	return store, nil
}

// Path returns the file backing the store.
func (store *Store) Path() string {
	return store.path
}

// Register records downstream under upstreamSlug and persists the graph.
func (store *Store) Register(upstreamSlug string, downstream repository.Identity) error {
	return store.RegisterAll([]string{upstreamSlug}, downstream)
}

// RegisterAll records downstream under every upstream slug and persists the
// graph once. The in-memory graph only changes when the write succeeds.
func (store *Store) RegisterAll(upstreamSlugs []string, downstream repository.Identity) error {
	if downstream.IsZero() {
		return InvalidInputError{FieldName: downstreamFieldNameConstant, Message: requiredValueMessageConstant}
	}

	trimmedUpstreamSlugs := make([]string, 0, len(upstreamSlugs))
	for _, upstreamSlug := range upstreamSlugs {
		trimmedUpstreamSlug := strings.TrimSpace(upstreamSlug)
		if len(trimmedUpstreamSlug) == 0 {
			return InvalidInputError{FieldName: upstreamSlugFieldNameConstant, Message: requiredValueMessageConstant}
		}
		trimmedUpstreamSlugs = append(trimmedUpstreamSlugs, trimmedUpstreamSlug)
	}
	if len(trimmedUpstreamSlugs) == 0 {
		return nil
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()

	updated := store.contents.clone()
	downstreamSlug := downstream.Slug()
	for _, upstreamSlug := range trimmedUpstreamSlugs {
		entry, exists := updated.Repositories[upstreamSlug]
		if !exists {
			entry = upstreamEntry{Downstreams: make(map[string]repository.Identity)}
		}
		entry.Downstreams[downstreamSlug] = downstream
		updated.Repositories[upstreamSlug] = entry
	}

	if persistError := store.persist(updated); persistError != nil {
		return persistError
	}
	store.contents = updated

	for _, upstreamSlug := range trimmedUpstreamSlugs {
		store.logger.Info(
			downstreamRegisteredMessageConstant,
			zap.String(logFieldUpstreamConstant, upstreamSlug),
			zap.String(logFieldDownstreamConstant, downstreamSlug),
		)
	}

	return nil
}

// DownstreamsOf returns the downstreams registered under upstreamSlug sorted
// by slug. Unknown upstreams yield an empty slice.
func (store *Store) DownstreamsOf(upstreamSlug string) []repository.Identity {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	entry, exists := store.contents.Repositories[strings.TrimSpace(upstreamSlug)]
	if !exists {
		return []repository.Identity{}
	}

	downstreamSlugs := make([]string, 0, len(entry.Downstreams))
	for downstreamSlug := range entry.Downstreams {
		downstreamSlugs = append(downstreamSlugs, downstreamSlug)
	}
	sort.Strings(downstreamSlugs)

	downstreams := make([]repository.Identity, 0, len(downstreamSlugs))
	for _, downstreamSlug := range downstreamSlugs {
		downstreams = append(downstreams, entry.Downstreams[downstreamSlug])
	}
	return downstreams
}

// Upstreams lists every upstream slug known to the store in sorted order.
func (store *Store) Upstreams() []string {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	upstreamSlugs := make([]string, 0, len(store.contents.Repositories))
	for upstreamSlug := range store.contents.Repositories {
		upstreamSlugs = append(upstreamSlugs, upstreamSlug)
	}
	sort.Strings(upstreamSlugs)
	return upstreamSlugs
}

// persist must be called with the write lock held.
func (store *Store) persist(contents document) error {
	encoded, encodeError := json.Marshal(contents)
	if encodeError != nil {
		return fmt.Errorf(storeEncodeErrorTemplateConstant, encodeError)
	}

	if writeError := writeFileAtomically(store.path, encoded); writeError != nil {
		return fmt.Errorf(storeWriteErrorTemplateConstant, store.path, writeError)
	}

	store.logger.Debug(
		storePersistedMessageConstant,
		zap.String(logFieldStorePathConstant, store.path),
		zap.Int(logFieldUpstreamCountConstant, len(contents.Repositories)),
	)
	return nil
}

func writeFileAtomically(targetPath string, contents []byte) (resultError error) {
	targetDirectory := filepath.Dir(targetPath)
	temporaryFile, createError := os.CreateTemp(targetDirectory, filepath.Base(targetPath)+temporaryFilePatternSuffixConstant)
	if createError != nil {
		return createError
	}
	temporaryPath := temporaryFile.Name()

	defer func() {
		if resultError != nil {
			_ = os.Remove(temporaryPath)
		}
	}()

	if _, writeError := temporaryFile.Write(contents); writeError != nil {
		_ = temporaryFile.Close()
		return writeError
	}
	if syncError := temporaryFile.Sync(); syncError != nil {
		_ = temporaryFile.Close()
		return syncError
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		return closeError
	}
	if chmodError := os.Chmod(temporaryPath, storeFilePermissionsConstant); chmodError != nil {
		return chmodError
	}

	return os.Rename(temporaryPath, targetPath)
}

package storage

import (
	json "github.com/goccy/go-json"
	"os"
	"parasited/internal/providers"
	"parasited/internal/storage/interfaces"
	"path/filepath"
)

const snapshotVersion = 1

// fileSnapshot is the on-disk envelope. Entries hold the stored JSON values
// verbatim.
type fileSnapshot struct {
	Version int                        `json:"version"`
	Entries map[string]json.RawMessage `json:"entries"`
}

type FileManager struct {
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewFileManager(compressor interfaces.CompressorInterface, logger providers.Logger) *FileManager {
	return &FileManager{
		compressor: compressor,
		logger:     logger,
	}
}

func (f *FileManager) SaveToFile(fileName string, entries map[string][]byte) error {
	snapshot := fileSnapshot{Version: snapshotVersion, Entries: make(map[string]json.RawMessage, len(entries))}
	for k, v := range entries {
		snapshot.Entries[k] = v
	}

	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fileName), 0755); err != nil {
		return err
	}
	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}

func (f *FileManager) Close() {
	f.compressor.Close()
}

// LoadFromFile returns nil entries when the file does not exist yet.
func (f *FileManager) LoadFromFile(fileName string) (map[string][]byte, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	decompressedData, err := f.compressor.Decompress(data)
	if err != nil {
		return nil, err
	}

	var snapshot fileSnapshot
	if err := json.Unmarshal(decompressedData, &snapshot); err == nil && snapshot.Version > 0 && snapshot.Entries != nil {
		return rawToBytes(snapshot.Entries), nil
	}

	// A flat key/value dump, as exported from the browser storage area.
	f.logger.Warnf(providers.TypeStore, "Snapshot without envelope found, importing as flat key/value dump")
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(decompressedData, &flat); err != nil {
		f.logger.Warnf(providers.TypeStore, "Import failed")
		return nil, err
	}
	return rawToBytes(flat), nil
}

func rawToBytes(in map[string]json.RawMessage) map[string][]byte {
	out := make(map[string][]byte, len(in))
	for k, v := range in {
		out[k] = []byte(v)
	}
	return out
}

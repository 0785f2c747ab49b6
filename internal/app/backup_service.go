package app

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/amanthanvi/registry/internal/storage"
)

const (
	backupFormatVersion = 1

	backupDatabaseFileName = storage.DatabaseFileName
	backupConfigFileName   = "config.toml"
	backupManifestFileName = "manifest.json"

	// maxBackupFileSize caps backup file reads to 512 MiB.
	maxBackupFileSize = 512 << 20

	// maxTarEntrySize caps individual tar archive entries during extraction.
	maxTarEntrySize = 256 << 20
)

var sqliteHeader = []byte("SQLite format 3\x00")

type BackupService struct {
	store *storage.Store
}

func NewBackupService(store *storage.Store) *BackupService {
	return &BackupService{store: store}
}

// Create writes a gzip'd tar archive holding a consistent snapshot of
// registry.db, the optional config file and a checksummed manifest.
func (s *BackupService) Create(ctx context.Context, req BackupCreateRequest) (*BackupManifest, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("create backup: store is nil")
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return nil, fmt.Errorf("%w: output path is required", ErrValidation)
	}

	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	entries := map[string][]byte{
		backupDatabaseFileName: snapshot,
	}
	if req.ConfigPath != "" {
		configBytes, err := os.ReadFile(req.ConfigPath)
		switch {
		case err == nil:
			entries[backupConfigFileName] = configBytes
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("create backup: read config: %w", err)
		}
	}

	schemaVersion, err := s.store.SchemaVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	count, err := s.store.Members.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}

	manifest := &BackupManifest{
		Version:       backupFormatVersion,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
		SchemaVersion: schemaVersion,
		MemberCount:   count,
		Files:         map[string]BackupManifestFile{},
	}
	for name, data := range entries {
		manifest.Files[name] = BackupManifestFile{
			SHA256:    sha256Hex(data),
			SizeBytes: int64(len(data)),
		}
	}

	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("create backup: marshal manifest: %w", err)
	}
	entries[backupManifestFileName] = manifestBytes

	payload, err := createTarGzEntries(entries)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o700); err != nil {
		return nil, fmt.Errorf("create backup: create output directory: %w", err)
	}
	if err := os.WriteFile(req.OutputPath, payload, 0o600); err != nil {
		return nil, fmt.Errorf("create backup: write output: %w", err)
	}
	return manifest, nil
}

// snapshot copies the live database with VACUUM INTO, which sees a single
// read transaction even while other processes keep writing.
func (s *BackupService) snapshot(ctx context.Context) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "registry-backup-*")
	if err != nil {
		return nil, fmt.Errorf("create backup: temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	target := filepath.Join(tmpDir, backupDatabaseFileName)
	if _, err := s.store.DB().ExecContext(ctx, `VACUUM INTO ?`, target); err != nil {
		return nil, fmt.Errorf("create backup: snapshot database: %w", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("create backup: read snapshot: %w", err)
	}
	return data, nil
}

// RestoreBackup verifies an archive written by Create and installs its
// database as TargetDir/registry.db. The target store must not be open.
func RestoreBackup(ctx context.Context, req BackupRestoreRequest) (*BackupManifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.InputPath) == "" {
		return nil, fmt.Errorf("%w: input path is required", ErrValidation)
	}
	if strings.TrimSpace(req.TargetDir) == "" {
		return nil, fmt.Errorf("%w: target data directory is required", ErrValidation)
	}

	targetPath := filepath.Join(req.TargetDir, backupDatabaseFileName)
	if _, err := os.Stat(targetPath); err == nil && !req.Overwrite {
		return nil, fmt.Errorf("%w: %s exists; pass --overwrite", ErrValidation, targetPath)
	}

	payload, err := readBackupPayload(req.InputPath)
	if err != nil {
		return nil, err
	}
	entries, err := extractTarGzEntries(payload)
	if err != nil {
		return nil, err
	}
	manifest, err := verifyBackupEntries(entries)
	if err != nil {
		return nil, err
	}

	database := entries[backupDatabaseFileName]
	if err := os.MkdirAll(req.TargetDir, 0o700); err != nil {
		return nil, fmt.Errorf("restore backup: create target directory: %w", err)
	}
	// A stale WAL next to the restored file would be replayed on top of it.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(targetPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("restore backup: remove %s: %w", suffix, err)
		}
	}
	if err := writeFileAtomic(targetPath, database); err != nil {
		return nil, fmt.Errorf("restore backup: write database: %w", err)
	}

	if configBytes, ok := entries[backupConfigFileName]; ok && req.ConfigPath != "" {
		if err := os.MkdirAll(filepath.Dir(req.ConfigPath), 0o700); err != nil {
			return nil, fmt.Errorf("restore backup: create config directory: %w", err)
		}
		if err := writeFileAtomic(req.ConfigPath, configBytes); err != nil {
			return nil, fmt.Errorf("restore backup: write config: %w", err)
		}
	}
	return manifest, nil
}

func verifyBackupEntries(entries map[string][]byte) (*BackupManifest, error) {
	manifestRaw, ok := entries[backupManifestFileName]
	if !ok {
		return nil, fmt.Errorf("%w: backup manifest missing", ErrValidation)
	}
	var manifest BackupManifest
	if err := json.Unmarshal(manifestRaw, &manifest); err != nil {
		return nil, fmt.Errorf("%w: decode backup manifest: %v", ErrValidation, err)
	}
	if manifest.Version != backupFormatVersion {
		return nil, fmt.Errorf("%w: unsupported backup version %d", ErrValidation, manifest.Version)
	}
	for name, meta := range manifest.Files {
		fileBytes, ok := entries[name]
		if !ok {
			return nil, fmt.Errorf("%w: backup archive missing %q", ErrValidation, name)
		}
		if got := sha256Hex(fileBytes); !strings.EqualFold(got, meta.SHA256) {
			return nil, fmt.Errorf("%w: checksum mismatch for %q", ErrValidation, name)
		}
	}

	database, ok := entries[backupDatabaseFileName]
	if !ok {
		return nil, fmt.Errorf("%w: backup has no %s", ErrValidation, backupDatabaseFileName)
	}
	if !bytes.HasPrefix(database, sqliteHeader) {
		return nil, fmt.Errorf("%w: %s in backup is not a SQLite database", ErrValidation, backupDatabaseFileName)
	}
	return &manifest, nil
}

func readBackupPayload(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read backup payload: %w", err)
	}
	if info.Size() > maxBackupFileSize {
		return nil, fmt.Errorf("read backup payload: file exceeds %d MiB limit", maxBackupFileSize>>20)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backup payload: %w", err)
	}
	if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
		return nil, fmt.Errorf("%w: %s is not a gzip archive", ErrValidation, path)
	}
	return raw, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func createTarGzEntries(entries map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var out bytes.Buffer
	gz := gzip.NewWriter(&out)
	tw := tar.NewWriter(gz)
	for _, name := range names {
		data := entries[name]
		header := &tar.Header{
			Name:    name,
			Mode:    0o600,
			Size:    int64(len(data)),
			ModTime: time.Unix(0, 0).UTC(),
		}
		if err := tw.WriteHeader(header); err != nil {
			_ = tw.Close()
			_ = gz.Close()
			return nil, fmt.Errorf("create tar.gz payload: write header %q: %w", name, err)
		}
		if _, err := tw.Write(data); err != nil {
			_ = tw.Close()
			_ = gz.Close()
			return nil, fmt.Errorf("create tar.gz payload: write file %q: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		_ = gz.Close()
		return nil, fmt.Errorf("create tar.gz payload: close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("create tar.gz payload: close gzip writer: %w", err)
	}
	return out.Bytes(), nil
}

func extractTarGzEntries(payload []byte) (map[string][]byte, error) {
	gzReader, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: extract backup: gzip reader: %v", ErrValidation, err)
	}
	defer gzReader.Close()

	tr := tar.NewReader(gzReader)
	entries := map[string][]byte{}
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: extract backup: read header: %v", ErrValidation, err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		if header.Size > maxTarEntrySize {
			return nil, fmt.Errorf("%w: extract backup: %q exceeds %d MiB entry limit", ErrValidation, header.Name, maxTarEntrySize>>20)
		}
		data, err := io.ReadAll(io.LimitReader(tr, maxTarEntrySize+1))
		if err != nil {
			return nil, fmt.Errorf("extract backup: read %q: %w", header.Name, err)
		}
		entries[header.Name] = data
	}
	return entries, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/amanthanvi/registry/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestBackupCreateManifestIncludesChecksumsAndCounts(t *testing.T) {
	t.Parallel()

	svc, store := newAppTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, validInput("12345-1234567-1"))
	require.NoError(t, err)

	backupPath := filepath.Join(t.TempDir(), "registry.tar.gz")
	manifest, err := NewBackupService(store).Create(ctx, BackupCreateRequest{
		OutputPath: backupPath,
		ConfigPath: createConfigFixture(t),
	})
	require.NoError(t, err)
	require.Equal(t, 1, manifest.Version)
	require.Equal(t, 1, manifest.MemberCount)
	require.Equal(t, 1, manifest.SchemaVersion)
	require.NotEmpty(t, manifest.Files[backupDatabaseFileName].SHA256)
	require.NotEmpty(t, manifest.Files[backupConfigFileName].SHA256)

	info, err := os.Stat(backupPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	payload, err := readBackupPayload(backupPath)
	require.NoError(t, err)
	entries, err := extractTarGzEntries(payload)
	require.NoError(t, err)

	var stored BackupManifest
	require.NoError(t, json.Unmarshal(entries[backupManifestFileName], &stored))
	require.Equal(t, manifest.Files, stored.Files)
}

func TestBackupCreateSkipsMissingConfig(t *testing.T) {
	t.Parallel()

	_, store := newAppTestService(t)
	manifest, err := NewBackupService(store).Create(context.Background(), BackupCreateRequest{
		OutputPath: filepath.Join(t.TempDir(), "registry.tar.gz"),
		ConfigPath: filepath.Join(t.TempDir(), "absent.toml"),
	})
	require.NoError(t, err)
	require.NotContains(t, manifest.Files, backupConfigFileName)
}

func TestBackupRoundTripRestoresMembers(t *testing.T) {
	t.Parallel()

	svc, store := newAppTestService(t)
	ctx := context.Background()
	in := validInput("12345-1234567-1")
	in.CNICFrontImage = []byte{0x89, 'P', 'N', 'G'}
	_, err := svc.Create(ctx, in)
	require.NoError(t, err)

	backupPath := filepath.Join(t.TempDir(), "registry.tar.gz")
	_, err = NewBackupService(store).Create(ctx, BackupCreateRequest{OutputPath: backupPath})
	require.NoError(t, err)

	target := t.TempDir()
	manifest, err := RestoreBackup(ctx, BackupRestoreRequest{InputPath: backupPath, TargetDir: target})
	require.NoError(t, err)
	require.Equal(t, 1, manifest.MemberCount)

	restored, err := storage.Open(target)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, restored.Close()) })

	member, found, err := restored.Members.FindByCNIC(ctx, "12345-1234567-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, in.CNICFrontImage, member.CNICFrontImage)
}

func TestBackupRestoreRefusesExistingTargetWithoutOverwrite(t *testing.T) {
	t.Parallel()

	_, store := newAppTestService(t)
	ctx := context.Background()
	backupPath := filepath.Join(t.TempDir(), "registry.tar.gz")
	_, err := NewBackupService(store).Create(ctx, BackupCreateRequest{OutputPath: backupPath})
	require.NoError(t, err)

	target := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(target, storage.DatabaseFileName), []byte("existing"), 0o600))

	_, err = RestoreBackup(ctx, BackupRestoreRequest{InputPath: backupPath, TargetDir: target})
	require.ErrorIs(t, err, ErrValidation)

	_, err = RestoreBackup(ctx, BackupRestoreRequest{InputPath: backupPath, TargetDir: target, Overwrite: true})
	require.NoError(t, err)
}

func TestBackupRestoreRejectsTamperedArchive(t *testing.T) {
	t.Parallel()

	payload, err := createTarGzEntries(map[string][]byte{
		backupManifestFileName: []byte(`{"version":1,"files":{"registry.db":{"sha256":"00","size_bytes":4}}}`),
		backupDatabaseFileName: []byte("nope"),
	})
	require.NoError(t, err)
	backupPath := filepath.Join(t.TempDir(), "tampered.tar.gz")
	require.NoError(t, os.WriteFile(backupPath, payload, 0o600))

	_, err = RestoreBackup(context.Background(), BackupRestoreRequest{InputPath: backupPath, TargetDir: t.TempDir()})
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "checksum mismatch")
}

func TestBackupRestoreRejectsNonGzipInput(t *testing.T) {
	t.Parallel()

	backupPath := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(backupPath, []byte("hello"), 0o600))

	_, err := RestoreBackup(context.Background(), BackupRestoreRequest{InputPath: backupPath, TargetDir: t.TempDir()})
	require.ErrorIs(t, err, ErrValidation)
}

func createConfigFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o600))
	return path
}

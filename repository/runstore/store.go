package runstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"alphastral/domain"
)

// RecordVersion は実行記録のスキーマバージョンです。
const RecordVersion = 1

var (
	// ErrRunExists は同一の実行記録を二重に永続化しようとした場合に
	// 返されるエラーです。既存の実行ファイルは決して上書きされません。
	ErrRunExists = errors.New("runstore: run record already exists")
	// ErrBadVersion は未対応のスキーマバージョンの記録を読んだ場合に返されるエラーです。
	ErrBadVersion = errors.New("runstore: unsupported record version")
)

// Record は永続化される実行記録の外枠です。
type Record struct {
	Version int              `json:"version"`
	Run     domain.RunResult `json:"run"`
}

// Store は実行記録を追記専用のJSONファイルとして保存します。
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

// Persist は実行記録を書き出し、保存先のパスを返します。
// ファイル名は実行メタデータ（フォーマット・開始時刻・実行ID）から
// 決定的に導かれ、O_EXCLにより既存ファイルの上書きを防ぎます。
func (s *Store) Persist(run domain.RunResult) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("runstore: create dir: %w", err)
	}

	path := filepath.Join(s.dir, Filename(run))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrRunExists, path)
		}
		return "", fmt.Errorf("runstore: open: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Record{Version: RecordVersion, Run: run}); err != nil {
		return "", fmt.Errorf("runstore: encode: %w", err)
	}
	return path, nil
}

// Filename は実行メタデータから保存ファイル名を導きます。
func Filename(run domain.RunResult) string {
	tag := run.RunID
	if len(tag) > 6 {
		tag = tag[:6]
	}
	return fmt.Sprintf("%s_%s_%s.json",
		sanitize(run.Format),
		run.StartedAt.UTC().Format("20060102-150405"),
		tag)
}

// Load は永続化済みの実行記録を読み込みます。
func Load(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("runstore: read: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("runstore: decode: %w", err)
	}
	if rec.Version != RecordVersion {
		return Record{}, fmt.Errorf("%w: %d", ErrBadVersion, rec.Version)
	}
	return rec, nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}

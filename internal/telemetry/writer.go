// Package telemetry implements the columnar stroke-telemetry writer
// (SPEC_FULL.md §4.3): one row-group-appendable file per session, each row
// group independently decodable and zstd-compressed.
package telemetry

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/tracerun/coreruntime/internal/domain"
	"github.com/tracerun/coreruntime/internal/metrics"
)

var (
	fileMagic     = [4]byte{'T', 'R', 'T', '1'}
	schemaVersion = uint32(1)
)

// Manager owns the process-global map from session_id to its open writer,
// mirroring the teacher's process-global resource maps (SPEC_FULL.md §5).
type Manager struct {
	baseDir string

	mu      sync.Mutex
	writers map[string]*sessionWriter
}

// NewManager creates a Manager rooted at baseDir, creating it if absent.
func NewManager(baseDir string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create telemetry dir: %w", err)
	}
	return &Manager{baseDir: baseDir, writers: make(map[string]*sessionWriter)}, nil
}

// SessionPath returns the path a session's telemetry file would live at.
func (m *Manager) SessionPath(sessionID string) string {
	return filepath.Join(m.baseDir, "session_"+sessionID+".rgz")
}

// AppendStrokes appends rows as one new row group to the session's file,
// opening the file on first use. Returns the row count just written and
// the session's running total.
func (m *Manager) AppendStrokes(sessionID string, rows []domain.StrokeRow) (rowCount, totalRows int, path string, err error) {
	if len(rows) == 0 {
		return 0, 0, "", fmt.Errorf("append strokes: empty batch")
	}

	w, err := m.writerFor(sessionID)
	if err != nil {
		return 0, 0, "", err
	}

	if err := w.appendRowGroup(rows); err != nil {
		return 0, 0, "", err
	}

	metrics.RecordTelemetryRows(sessionID, len(rows))
	return len(rows), w.totalRows(), w.path, nil
}

// CloseSession flushes and closes the session's writer, removing it from
// the open-writer map. Safe to call on a session with no open writer.
func (m *Manager) CloseSession(sessionID string) error {
	m.mu.Lock()
	w, ok := m.writers[sessionID]
	delete(m.writers, sessionID)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return w.close()
}

func (m *Manager) writerFor(sessionID string) (*sessionWriter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.writers[sessionID]; ok {
		return w, nil
	}

	w, err := openSessionWriter(m.SessionPath(sessionID))
	if err != nil {
		return nil, err
	}
	m.writers[sessionID] = w
	return w, nil
}

type sessionWriter struct {
	path string

	mu    sync.Mutex
	file  *os.File
	total int
}

func openSessionWriter(path string) (*sessionWriter, error) {
	existing, statErr := os.Stat(path)
	isNew := statErr != nil || existing.Size() == 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open telemetry file: %w", err)
	}

	w := &sessionWriter{path: path, file: f}

	if isNew {
		if err := w.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		rows, err := countRowsInFile(path)
		if err != nil {
			f.Close()
			return nil, err
		}
		w.total = rows
	}

	return w, nil
}

func (w *sessionWriter) writeHeader() error {
	var hdr bytes.Buffer
	hdr.Write(fileMagic[:])
	binary.Write(&hdr, binary.LittleEndian, schemaVersion)
	_, err := w.file.Write(hdr.Bytes())
	return err
}

func (w *sessionWriter) appendRowGroup(rows []domain.StrokeRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	payload := encodeRowGroup(rows)

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	compressed := enc.EncodeAll(payload, nil)
	enc.Close()

	var frame bytes.Buffer
	binary.Write(&frame, binary.LittleEndian, uint32(len(compressed)))
	frame.Write(compressed)

	if _, err := w.file.Write(frame.Bytes()); err != nil {
		return fmt.Errorf("write row group: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync telemetry file: %w", err)
	}

	w.total += len(rows)
	return nil
}

func (w *sessionWriter) totalRows() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}

func (w *sessionWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// encodeRowGroup serializes rows column-major: row count, then each
// column's values in full (x, y, pressure, timestamp, tilt, tilt_x,
// tilt_y), per the §4.3 column layout.
func encodeRowGroup(rows []domain.StrokeRow) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(rows)))

	for _, r := range rows {
		binary.Write(&buf, binary.LittleEndian, r.X)
	}
	for _, r := range rows {
		binary.Write(&buf, binary.LittleEndian, r.Y)
	}
	for _, r := range rows {
		binary.Write(&buf, binary.LittleEndian, r.Pressure)
	}
	for _, r := range rows {
		binary.Write(&buf, binary.LittleEndian, r.Timestamp)
	}
	for _, r := range rows {
		binary.Write(&buf, binary.LittleEndian, r.Tilt)
	}
	for _, r := range rows {
		binary.Write(&buf, binary.LittleEndian, r.TiltX)
	}
	for _, r := range rows {
		binary.Write(&buf, binary.LittleEndian, r.TiltY)
	}

	return buf.Bytes()
}

func decodeRowGroup(data []byte) ([]domain.StrokeRow, error) {
	r := bytes.NewReader(data)

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read row group count: %w", err)
	}

	rows := make([]domain.StrokeRow, count)
	readF32Column := func(assign func(i int, v float32)) error {
		for i := 0; i < int(count); i++ {
			var v float32
			if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
				return err
			}
			assign(i, v)
		}
		return nil
	}

	if err := readF32Column(func(i int, v float32) { rows[i].X = v }); err != nil {
		return nil, fmt.Errorf("read x column: %w", err)
	}
	if err := readF32Column(func(i int, v float32) { rows[i].Y = v }); err != nil {
		return nil, fmt.Errorf("read y column: %w", err)
	}
	if err := readF32Column(func(i int, v float32) { rows[i].Pressure = v }); err != nil {
		return nil, fmt.Errorf("read pressure column: %w", err)
	}
	for i := 0; i < int(count); i++ {
		var v float64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, fmt.Errorf("read timestamp column: %w", err)
		}
		rows[i].Timestamp = v
	}
	if err := readF32Column(func(i int, v float32) { rows[i].Tilt = v }); err != nil {
		return nil, fmt.Errorf("read tilt column: %w", err)
	}
	if err := readF32Column(func(i int, v float32) { rows[i].TiltX = v }); err != nil {
		return nil, fmt.Errorf("read tilt_x column: %w", err)
	}
	if err := readF32Column(func(i int, v float32) { rows[i].TiltY = v }); err != nil {
		return nil, fmt.Errorf("read tilt_y column: %w", err)
	}

	return rows, nil
}

// LoadSessionStrokes reads an entire telemetry file and concatenates all
// of its row groups in file order, per the §4.3 "read entire file to
// reload" contract.
func LoadSessionStrokes(path string) ([]domain.StrokeRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry file: %w", err)
	}
	defer f.Close()

	if err := verifyHeader(f); err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	var all []domain.StrokeRow
	for {
		var length uint32
		if err := binary.Read(f, binary.LittleEndian, &length); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read row group length: %w", err)
		}

		compressed := make([]byte, length)
		if _, err := io.ReadFull(f, compressed); err != nil {
			return nil, fmt.Errorf("read row group body: %w", err)
		}

		decompressed, err := dec.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress row group: %w", err)
		}

		rows, err := decodeRowGroup(decompressed)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}

	return all, nil
}

func countRowsInFile(path string) (int, error) {
	rows, err := LoadSessionStrokes(path)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func verifyHeader(f *os.File) error {
	var magic [4]byte
	if err := binary.Read(f, binary.LittleEndian, &magic); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if magic != fileMagic {
		return fmt.Errorf("not a telemetry file: bad magic %v", magic)
	}

	var version uint32
	if err := binary.Read(f, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("unsupported telemetry schema version %d", version)
	}
	return nil
}

package method

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

const (
	recordVersionCurrent = 1

	flagActive  byte = 1 << 0
	flagPrimary byte = 1 << 1
)

// Encode serializes m. Strings are length-prefixed, so backup code entries
// may contain any byte.
func Encode(m *Method) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(64 + len(m.Secret) + 100*len(m.BackupCodes))

	buf.WriteByte(recordVersionCurrent)

	if err := writeString(&buf, m.Name); err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}
	if err := writeString(&buf, m.Secret); err != nil {
		return nil, fmt.Errorf("secret: %w", err)
	}

	var flags byte
	if m.IsActive {
		flags |= flagActive
	}
	if m.IsPrimary {
		flags |= flagPrimary
	}
	buf.WriteByte(flags)

	_ = binary.Write(&buf, binary.BigEndian, m.Counter)
	_ = binary.Write(&buf, binary.BigEndian, unixMicro(m.CodeGeneratedAt))
	_ = binary.Write(&buf, binary.BigEndian, unixMicro(m.CreatedAt))
	_ = binary.Write(&buf, binary.BigEndian, unixMicro(m.ActivatedAt))

	if len(m.BackupCodes) > math.MaxUint16 {
		return nil, errors.New("too many backup codes")
	}
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(m.BackupCodes)))
	for _, code := range m.BackupCodes {
		if err := writeString(&buf, code); err != nil {
			return nil, fmt.Errorf("backup code: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a record written by Encode. userID is not part of the record;
// stores key records by user.
func Decode(userID string, data []byte) (*Method, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, corrupt(err)
	}
	if version != recordVersionCurrent {
		return nil, fmt.Errorf("%w: unknown version %d", ErrCorrupt, version)
	}

	m := &Method{UserID: userID}
	if m.Name, err = readString(r); err != nil {
		return nil, corrupt(err)
	}
	if m.Secret, err = readString(r); err != nil {
		return nil, corrupt(err)
	}

	flags, err := r.ReadByte()
	if err != nil {
		return nil, corrupt(err)
	}
	m.IsActive = flags&flagActive != 0
	m.IsPrimary = flags&flagPrimary != 0

	var generatedAt, createdAt, activatedAt int64
	for _, dst := range []any{&m.Counter, &generatedAt, &createdAt, &activatedAt} {
		if err := binary.Read(r, binary.BigEndian, dst); err != nil {
			return nil, corrupt(err)
		}
	}
	m.CodeGeneratedAt = fromUnixMicro(generatedAt)
	m.CreatedAt = fromUnixMicro(createdAt)
	m.ActivatedAt = fromUnixMicro(activatedAt)

	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, corrupt(err)
	}
	if n > 0 {
		m.BackupCodes = make([]string, 0, n)
	}
	for i := 0; i < int(n); i++ {
		code, err := readString(r)
		if err != nil {
			return nil, corrupt(err)
		}
		m.BackupCodes = append(m.BackupCodes, code)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, r.Len())
	}
	return m, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return errors.New("value too long")
	}
	_ = binary.Write(buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func unixMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func fromUnixMicro(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", ErrCorrupt, err)
}

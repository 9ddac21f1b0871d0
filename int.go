package scroogecoin

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// all wire encodings are big-endian, so encoded integers sort the same way as their values
var byteOrder = binary.BigEndian

type integerIntern interface {
	uint8 | int8 | uint16 | int16 | uint32 | int32 | uint64 | int64
}

func ReadInteger[T integerIntern](r io.Reader, pval *T) error {
	return binary.Read(r, byteOrder, pval)
}

func WriteInteger[T integerIntern](w io.Writer, val T) error {
	return binary.Write(w, byteOrder, val)
}

// EncodeInteger returns fixed-size big-endian encoding of the value
func EncodeInteger[T integerIntern](v T) []byte {
	var buf bytes.Buffer
	if err := WriteInteger(&buf, v); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// DecodeInteger panics if data is shorter than the size of T. Use DecodeIntegerChecked for untrusted data
func DecodeInteger[T integerIntern](data []byte) T {
	ret, err := DecodeIntegerChecked[T](data)
	if err != nil {
		panic(err)
	}
	return ret
}

// DecodeIntegerChecked requires data to be exactly of the size of T
func DecodeIntegerChecked[T integerIntern](data []byte) (T, error) {
	var ret T
	if len(data) != binary.Size(ret) {
		return ret, fmt.Errorf("DecodeInteger: expected %d bytes, got %d", binary.Size(ret), len(data))
	}
	if err := ReadInteger(bytes.NewReader(data), &ret); err != nil {
		return ret, err
	}
	return ret, nil
}

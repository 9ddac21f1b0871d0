package lazyslice

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/lunfardo314/scroogecoin"
)

// Array is an append-only array of byte slices which can be viewed two ways:
// - as its serialized form
// - as the parsed list of elements
// Each form is produced from the other on demand and cached.
// Serialization picks the smallest element length prefix which fits the longest element.
type Array struct {
	bytes          []byte
	parsed         [][]byte
	maxNumElements int
}

type lenPrefixType uint16

// The serialized array starts with 2 bytes interpreted as big-endian uint16.
// The highest 2 bits encode the width of each element's length prefix (0, 1, 2 or 4 bytes),
// the remaining 14 bits encode the number of elements
const (
	DataLenBytes0  = uint16(0x00) << 14
	DataLenBytes8  = uint16(0x01) << 14
	DataLenBytes16 = uint16(0x02) << 14
	DataLenBytes32 = uint16(0x03) << 14

	DataLenMask  = uint16(0x03) << 14
	ArrayLenMask = ^DataLenMask
	MaxArrayLen  = int(ArrayLenMask) // 16383

	emptyArrayPrefix = lenPrefixType(0)
)

var ErrUnexpectedEOF = errors.New("lazyslice: unexpected end of data")

func (dl lenPrefixType) DataLenBytes() int {
	switch uint16(dl) & DataLenMask {
	case DataLenBytes0:
		return 0
	case DataLenBytes8:
		return 1
	case DataLenBytes16:
		return 2
	default:
		return 4
	}
}

func (dl lenPrefixType) NumElements() int {
	return int(uint16(dl) & ArrayLenMask)
}

func (dl lenPrefixType) Bytes() []byte {
	return scroogecoin.EncodeInteger(uint16(dl))
}

// ArrayFromBytes wraps serialized data without parsing it. Parsing errors surface as panics
// on first access. Use ParseArray for untrusted data
func ArrayFromBytes(data []byte, maxNumElements ...int) *Array {
	mx := MaxArrayLen
	if len(maxNumElements) > 0 {
		mx = maxNumElements[0]
	}
	return &Array{
		bytes:          data,
		maxNumElements: mx,
	}
}

// ParseArray parses data eagerly and returns an error if it is not a valid serialized array
func ParseArray(data []byte, maxNumElements ...int) (*Array, error) {
	ret := ArrayFromBytes(data, maxNumElements...)
	parsed, err := parseArray(data, ret.maxNumElements)
	if err != nil {
		return nil, err
	}
	ret.parsed = parsed
	return ret, nil
}

func EmptyArray(maxNumElements ...int) *Array {
	return ArrayFromBytes(emptyArrayPrefix.Bytes(), maxNumElements...)
}

// MakeArray creates array from the list of elements
func MakeArray(elems ...[]byte) *Array {
	ret := EmptyArray()
	for _, e := range elems {
		ret.Push(e)
	}
	return ret
}

func (a *Array) SetEmptyArray() {
	a.bytes = emptyArrayPrefix.Bytes()
	a.parsed = nil
}

func (a *Array) IsEmpty() bool {
	return a.NumElements() == 0
}

func (a *Array) IsFull() bool {
	return a.NumElements() >= a.maxNumElements
}

// Push appends element and returns its index. Panics if the array is full
func (a *Array) Push(data []byte) int {
	a.ensureParsed()
	if len(a.parsed) >= a.maxNumElements {
		panic("Array.Push: too many elements")
	}
	a.parsed = append(a.parsed, data)
	a.bytes = nil
	return len(a.parsed) - 1
}

func (a *Array) ForEach(fun func(i int, data []byte) bool) {
	for i := 0; i < a.NumElements(); i++ {
		if !fun(i, a.At(i)) {
			break
		}
	}
}

func (a *Array) At(idx int) []byte {
	a.ensureParsed()
	return a.parsed[idx]
}

func (a *Array) NumElements() int {
	a.ensureParsed()
	return len(a.parsed)
}

func (a *Array) Bytes() []byte {
	a.ensureBytes()
	return a.bytes
}

func (a *Array) ensureParsed() {
	if a.parsed != nil {
		return
	}
	var err error
	if a.parsed, err = parseArray(a.bytes, a.maxNumElements); err != nil {
		panic(err)
	}
}

func (a *Array) ensureBytes() {
	if a.bytes != nil {
		return
	}
	var buf bytes.Buffer
	if err := encodeArray(a.parsed, &buf); err != nil {
		panic(err)
	}
	a.bytes = buf.Bytes()
}

func calcLenPrefix(data [][]byte) (lenPrefixType, error) {
	if len(data) > MaxArrayLen {
		return 0, fmt.Errorf("lazyslice: too many elements: %d", len(data))
	}
	var dl uint16
	for _, d := range data {
		var t uint16
		switch {
		case len(d) > math.MaxUint32:
			return 0, errors.New("lazyslice: element can't be longer than MaxUint32")
		case len(d) > math.MaxUint16:
			t = DataLenBytes32
		case len(d) > math.MaxUint8:
			t = DataLenBytes16
		case len(d) > 0:
			t = DataLenBytes8
		}
		if dl < t {
			dl = t
		}
	}
	return lenPrefixType(dl | uint16(len(data))), nil
}

func writeData(data [][]byte, numDataLenBytes int, w io.Writer) error {
	if numDataLenBytes == 0 {
		// all elements are empty
		return nil
	}
	for _, d := range data {
		var err error
		switch numDataLenBytes {
		case 1:
			err = scroogecoin.WriteInteger(w, uint8(len(d)))
		case 2:
			err = scroogecoin.WriteInteger(w, uint16(len(d)))
		case 4:
			err = scroogecoin.WriteInteger(w, uint32(len(d)))
		}
		if err != nil {
			return err
		}
		if _, err = w.Write(d); err != nil {
			return err
		}
	}
	return nil
}

// decodeElement cuts the next element from buf without copying
func decodeElement(buf []byte, numDataLenBytes int) ([]byte, []byte, error) {
	if len(buf) < numDataLenBytes {
		return nil, nil, ErrUnexpectedEOF
	}
	var sz int
	switch numDataLenBytes {
	case 0:
	case 1:
		sz = int(buf[0])
	case 2:
		sz = int(scroogecoin.DecodeInteger[uint16](buf[:2]))
	case 4:
		sz = int(scroogecoin.DecodeInteger[uint32](buf[:4]))
	default:
		return nil, nil, errors.New("lazyslice: wrong length prefix width")
	}
	if len(buf) < numDataLenBytes+sz {
		return nil, nil, ErrUnexpectedEOF
	}
	return buf[numDataLenBytes+sz:], buf[numDataLenBytes : numDataLenBytes+sz], nil
}

func decodeData(data []byte, numDataLenBytes int, n int) ([][]byte, error) {
	ret := make([][]byte, n)
	var err error
	for i := 0; i < n; i++ {
		if data, ret[i], err = decodeElement(data, numDataLenBytes); err != nil {
			return nil, err
		}
	}
	if len(data) != 0 {
		return nil, errors.New("lazyslice: not all bytes were consumed")
	}
	return ret, nil
}

func encodeArray(data [][]byte, w io.Writer) error {
	prefix, err := calcLenPrefix(data)
	if err != nil {
		return err
	}
	if _, err = w.Write(prefix.Bytes()); err != nil {
		return err
	}
	return writeData(data, prefix.DataLenBytes(), w)
}

func parseArray(data []byte, maxNumElements int) ([][]byte, error) {
	if len(data) < 2 {
		return nil, ErrUnexpectedEOF
	}
	prefix := lenPrefixType(scroogecoin.DecodeInteger[uint16](data[:2]))
	if prefix.NumElements() > maxNumElements {
		return nil, fmt.Errorf("lazyslice: number of elements %d exceeds maximum %d",
			prefix.NumElements(), maxNumElements)
	}
	return decodeData(data[2:], prefix.DataLenBytes(), prefix.NumElements())
}

package lsm

import (
	"encoding/binary"
	"io"
)

// fields returns the footer values in write order
func (f *Footer) fields() []*uint64 {
	return []*uint64{&f.PartSize, &f.DataStart, &f.DataLen, &f.IndexStart, &f.IndexLen, &f.Version}
}

// MarshalBinary encodes the footer in its fixed 48-byte layout
func (f Footer) MarshalBinary() []byte {
	buf := make([]byte, 0, FooterSize)
	for _, v := range f.fields() {
		buf = binary.BigEndian.AppendUint64(buf, *v)
	}
	return buf
}

// readFooter parses the footer of a file of the given size. Fields are read
// backwards from the end: version at size-8 down to partSize at size-48.
func readFooter(r io.ReaderAt, size int64) (Footer, error) {
	var f Footer
	if size < FooterSize {
		return f, corruptf("file of %d bytes has no footer", size)
	}

	fields := f.fields()
	var word [8]byte
	for i := len(fields) - 1; i >= 0; i-- {
		back := int64(len(fields)-i) * 8
		if _, err := r.ReadAt(word[:], size-back); err != nil {
			return f, err
		}
		*fields[i] = binary.BigEndian.Uint64(word[:])
	}

	if err := f.validate(size); err != nil {
		return f, err
	}
	return f, nil
}

// validate checks that the regions fit the file and follow each other
func (f Footer) validate(size int64) error {
	if f.Version != FormatVersion {
		return corruptf("unsupported version %d", f.Version)
	}
	if f.PartSize == 0 {
		return corruptf("partition size is zero")
	}

	body := uint64(size - FooterSize)
	if f.DataStart+f.DataLen < f.DataStart || f.DataStart+f.DataLen != f.IndexStart {
		return corruptf("data region [%d,+%d) does not end at index start %d", f.DataStart, f.DataLen, f.IndexStart)
	}
	if f.IndexStart+f.IndexLen < f.IndexStart || f.IndexStart+f.IndexLen != body {
		return corruptf("index region [%d,+%d) does not end at footer %d", f.IndexStart, f.IndexLen, body)
	}
	return nil
}

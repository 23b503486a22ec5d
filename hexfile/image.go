package hexfile

import "sort"

// Segment is a contiguous run of image bytes.
type Segment struct {
	// Address is the byte address of the first byte
	Address uint32

	// Data holds the bytes
	Data []byte
}

// End returns the address just past the segment.
func (s Segment) End() uint32 {
	return s.Address + uint32(len(s.Data))
}

// Image is a parsed firmware image: non-overlapping segments sorted by
// address, with adjacent segments merged.
type Image struct {
	Segments []Segment
}

// Size returns the number of bytes in the image.
func (img *Image) Size() int {
	n := 0
	for _, s := range img.Segments {
		n += len(s.Data)
	}
	return n
}

// Empty reports whether the image holds no data.
func (img *Image) Empty() bool {
	return img.Size() == 0
}

// Clip returns the part of the image inside [start, start+length).
func (img *Image) Clip(start, length uint32) *Image {
	end := start + length
	out := &Image{}
	for _, s := range img.Segments {
		lo, hi := s.Address, s.End()
		if hi <= start || lo >= end {
			continue
		}
		if lo < start {
			lo = start
		}
		if hi > end {
			hi = end
		}
		data := make([]byte, hi-lo)
		copy(data, s.Data[lo-s.Address:hi-s.Address])
		out.Segments = append(out.Segments, Segment{Address: lo, Data: data})
	}
	return out
}

// Chunks splits every segment into pieces of at most size bytes.
// The chunks alias the image data.
func (img *Image) Chunks(size int) []Segment {
	if size <= 0 {
		return nil
	}
	var out []Segment
	for _, s := range img.Segments {
		for off := 0; off < len(s.Data); off += size {
			n := size
			if off+n > len(s.Data) {
				n = len(s.Data) - off
			}
			out = append(out, Segment{Address: s.Address + uint32(off), Data: s.Data[off : off+n]})
		}
	}
	return out
}

// SkipBlank drops runs of at least minWords consecutive blank words from
// the image. Words are little-endian byte pairs aligned to even addresses;
// erased flash already holds blank, so skipped runs need no programming.
func (img *Image) SkipBlank(blank uint16, minWords int) *Image {
	if minWords <= 0 {
		minWords = 1
	}
	lo, hi := byte(blank), byte(blank>>8)

	out := &Image{}
	for _, s := range img.Segments {
		start := 0
		i := 0
		if s.Address%2 != 0 {
			i = 1
		}
		for i+1 < len(s.Data) {
			if s.Data[i] != lo || s.Data[i+1] != hi {
				i += 2
				continue
			}
			run := i
			for i+1 < len(s.Data) && s.Data[i] == lo && s.Data[i+1] == hi {
				i += 2
			}
			if (i-run)/2 < minWords {
				continue
			}
			if run > start {
				out.Segments = append(out.Segments, Segment{Address: s.Address + uint32(start), Data: s.Data[start:run]})
			}
			start = i
		}
		if start < len(s.Data) {
			out.Segments = append(out.Segments, Segment{Address: s.Address + uint32(start), Data: s.Data[start:]})
		}
	}
	return out
}

// normalize sorts the segments and merges adjacent ones. It reports the
// address of the first overlap, if any.
func (img *Image) normalize() (uint32, bool) {
	sort.SliceStable(img.Segments, func(i, j int) bool {
		return img.Segments[i].Address < img.Segments[j].Address
	})

	var merged []Segment
	for _, s := range img.Segments {
		if len(s.Data) == 0 {
			continue
		}
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if s.Address < last.End() {
				return s.Address, false
			}
			if s.Address == last.End() {
				last.Data = append(last.Data, s.Data...)
				continue
			}
		}
		merged = append(merged, Segment{Address: s.Address, Data: append([]byte(nil), s.Data...)})
	}
	img.Segments = merged
	return 0, true
}

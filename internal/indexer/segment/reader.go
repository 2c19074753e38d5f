package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"

	"github.com/Phil-Holland/notes-serve/internal/indexer/index"
	"github.com/Phil-Holland/notes-serve/internal/indexer/schema"
)

// Reader serves posting lookups from one segment file. The dictionary and
// norms are held in memory; postings are read on demand with ReadAt, so a
// Reader is safe for concurrent use.
type Reader struct {
	file     *os.File
	header   SegmentHeader
	dict     []DictEntry
	norms    Norms
	postBase int64
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func load(f *os.File, path string) (*Reader, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", magic)
	}
	header := SegmentHeader{
		Magic:       magic,
		Version:     binary.LittleEndian.Uint32(headerBytes[4:8]),
		TermCount:   binary.LittleEndian.Uint32(headerBytes[8:12]),
		DocCount:    binary.LittleEndian.Uint32(headerBytes[12:16]),
		DictOffset:  int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
		DictSize:    int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		PostOffset:  int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
		PostSize:    int64(binary.LittleEndian.Uint64(headerBytes[40:48])),
		NormsOffset: int64(binary.LittleEndian.Uint64(headerBytes[48:56])),
		NormsSize:   int64(binary.LittleEndian.Uint64(headerBytes[56:64])),
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment version %d", header.Version)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.NormsOffset+header.NormsSize); err != nil {
		return nil, fmt.Errorf("reading segment footer: %w", err)
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if sum := crc32.ChecksumIEEE(dictBytes); sum != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, fmt.Errorf("dictionary checksum mismatch in %s", path)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}

	normsBytes := make([]byte, header.NormsSize)
	if _, err := f.ReadAt(normsBytes, header.NormsOffset); err != nil {
		return nil, fmt.Errorf("reading norms: %w", err)
	}
	if sum := crc32.ChecksumIEEE(normsBytes); sum != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, fmt.Errorf("norms checksum mismatch in %s", path)
	}
	var norms Norms
	if err := json.Unmarshal(normsBytes, &norms); err != nil {
		return nil, fmt.Errorf("parsing norms: %w", err)
	}

	return &Reader{
		file:     f,
		header:   header,
		dict:     dict,
		norms:    norms,
		postBase: header.PostOffset,
	}, nil
}

// Search returns the posting list of term in field, or nil when the term
// does not occur.
func (r *Reader) Search(field schema.Field, term string) (index.PostingList, error) {
	entry, ok := r.lookup(field, term)
	if !ok {
		return nil, nil
	}
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.postBase+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings: %w", err)
	}
	return postings, nil
}

func (r *Reader) lookup(field schema.Field, term string) (DictEntry, bool) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		if r.dict[i].Field != field {
			return r.dict[i].Field > field
		}
		return r.dict[i].Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Field != field || r.dict[idx].Term != term {
		return DictEntry{}, false
	}
	return r.dict[idx], true
}

// FieldLength returns the token count of field in document docID.
func (r *Reader) FieldLength(field schema.Field, docID uint32) int {
	lengths := r.norms[field]
	if int(docID) >= len(lengths) {
		return 0
	}
	return int(lengths[docID])
}

// TotalFieldLength returns the summed token count of field over all
// documents.
func (r *Reader) TotalFieldLength(field schema.Field) int64 {
	var total int64
	for _, n := range r.norms[field] {
		total += int64(n)
	}
	return total
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

func (r *Reader) Close() error {
	return r.file.Close()
}

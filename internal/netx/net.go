// Package netx builds request bodies for streaming uploads.
package netx

import (
	"bytes"
	"io"
	"mime/multipart"
	"sync"

	"github.com/dmitrijs2005/otaverifier/internal/filex"
)

// Field is a plain multipart form value.
type Field struct {
	Name  string
	Value string
}

// FilePart is a multipart file attachment streamed from a Blob.
type FilePart struct {
	Field string
	Blob  filex.Blob
}

// MultipartBody is a multipart/form-data body whose exact length is known
// before the first byte is sent. File contents are streamed from their Blobs
// rather than buffered.
type MultipartBody struct {
	reader      io.Reader
	size        int64
	contentType string
}

// NewMultipartBody lays out fields first, then files, in the given order.
func NewMultipartBody(fields []Field, files []FilePart) (*MultipartBody, error) {
	var (
		buf      bytes.Buffer
		segments []io.Reader
		size     int64
	)
	mw := multipart.NewWriter(&buf)

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		seg := append([]byte(nil), buf.Bytes()...)
		segments = append(segments, bytes.NewReader(seg))
		size += int64(len(seg))
		buf.Reset()
	}

	for _, f := range fields {
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			return nil, err
		}
	}

	for _, f := range files {
		if _, err := mw.CreateFormFile(f.Field, f.Blob.Name()); err != nil {
			return nil, err
		}
		flush()
		segments = append(segments, io.NewSectionReader(f.Blob, 0, f.Blob.Size()))
		size += f.Blob.Size()
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	flush()

	return &MultipartBody{
		reader:      io.MultiReader(segments...),
		size:        size,
		contentType: mw.FormDataContentType(),
	}, nil
}

func (b *MultipartBody) Read(p []byte) (int, error) { return b.reader.Read(p) }

// Size is the exact number of bytes Read will produce.
func (b *MultipartBody) Size() int64 { return b.size }

// ContentType is the multipart/form-data header value including the boundary.
func (b *MultipartBody) ContentType() string { return b.contentType }

// ProgressReader counts bytes read through it and reports them together with
// the expected total.
type ProgressReader struct {
	r        io.Reader
	total    int64
	mu       sync.Mutex
	read     int64
	progress func(sent, total int64)
}

// NewProgressReader wraps r. progress may be nil.
func NewProgressReader(r io.Reader, total int64, progress func(sent, total int64)) *ProgressReader {
	return &ProgressReader{r: r, total: total, progress: progress}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.read += int64(n)
		sent := p.read
		p.mu.Unlock()
		if p.progress != nil {
			p.progress(sent, p.total)
		}
	}
	return n, err
}

// Percent is round(sent*100/total); a zero total counts as complete.
func Percent(sent, total int64) int {
	if total <= 0 {
		return 100
	}
	return int((sent*100 + total/2) / total)
}

package checksum

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/otaverifier/internal/common"
	"github.com/dmitrijs2005/otaverifier/internal/filex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func md5Hex(b []byte) string {
	s := md5.Sum(b)
	return hex.EncodeToString(s[:])
}

// failingBlob returns err after the first failAfter bytes.
type failingBlob struct {
	size      int64
	failAfter int64
	err       error
}

func (f *failingBlob) Name() string { return "broken.raucb" }
func (f *failingBlob) Size() int64  { return f.size }
func (f *failingBlob) ReadAt(p []byte, off int64) (int, error) {
	if off+int64(len(p)) > f.failAfter {
		return 0, f.err
	}
	return len(p), nil
}

func TestVerify_TwelveMiBBundleMatches(t *testing.T) {
	data := randomBytes(t, 12*1024*1024)
	bundle := filex.NewMemBlob("update.raucb", data)
	sum := filex.NewMemBlob("update.md5", []byte(md5Hex(data)+"  update.raucb\n"))

	var progress []int
	res := NewVerifier().Verify(context.Background(), bundle, sum, func(p int) { progress = append(progress, p) })

	require.True(t, res.Matched(), "message: %s err: %v", res.Message, res.Err)
	assert.Equal(t, StateMatched, res.State)
	assert.Equal(t, MessageMatched, res.Message)
	assert.Equal(t, md5Hex(data), res.Actual)
	assert.Equal(t, []int{33, 66, 100}, progress)
}

func TestVerify_UppercaseDeclaredDigestMatches(t *testing.T) {
	data := []byte("firmware payload")
	bundle := filex.NewMemBlob("fw.raucb", data)
	sum := filex.NewMemBlob("fw.md5", []byte("MD5 (fw.raucb) = "+strings.ToUpper(md5Hex(data))))

	res := NewVerifier().Verify(context.Background(), bundle, sum, nil)
	require.True(t, res.Matched())
	assert.Equal(t, md5Hex(data), res.Expected)
}

func TestVerify_SingleBitFlipMismatches(t *testing.T) {
	data := randomBytes(t, 64*1024)
	declared := md5Hex(data)

	v := &Verifier{WindowSize: 4096}
	for _, pos := range []int{0, 4095, 4096, len(data) - 1} {
		mutated := append([]byte(nil), data...)
		mutated[pos] ^= 0x01

		res := v.Verify(context.Background(),
			filex.NewMemBlob("b.raucb", mutated),
			filex.NewMemBlob("b.md5", []byte(declared)), nil)

		assert.False(t, res.Matched(), "bit flip at %d must not match", pos)
		assert.Equal(t, ReasonDigestMismatch, res.Reason)
		assert.Equal(t, MessageMismatched, res.Message)
		assert.ErrorIs(t, res.Err, common.ErrChecksumMismatch)
	}
}

func TestVerify_NoTokenIsDistinctFromWrongToken(t *testing.T) {
	data := []byte("bundle")
	bundle := filex.NewMemBlob("b.raucb", data)

	noToken := NewVerifier().Verify(context.Background(), bundle,
		filex.NewMemBlob("b.md5", []byte("checksum: not-a-digest 1234abcd")), nil)
	wrong := NewVerifier().Verify(context.Background(), bundle,
		filex.NewMemBlob("b.md5", []byte(strings.Repeat("0", 32))), nil)

	assert.Equal(t, StateMismatched, noToken.State)
	assert.Equal(t, ReasonNoToken, noToken.Reason)
	assert.Equal(t, MessageNoToken, noToken.Message)
	assert.ErrorIs(t, noToken.Err, common.ErrNoChecksumToken)

	assert.Equal(t, StateMismatched, wrong.State)
	assert.Equal(t, ReasonDigestMismatch, wrong.Reason)
	assert.NotEqual(t, noToken.Message, wrong.Message)
}

func TestVerify_ReadFailure(t *testing.T) {
	boom := errors.New("disk gone")
	bundle := &failingBlob{size: 10 * 1024, failAfter: 4096, err: boom}
	sum := filex.NewMemBlob("b.md5", []byte(strings.Repeat("a", 32)))

	var progress []int
	res := (&Verifier{WindowSize: 4096}).Verify(context.Background(), bundle, sum, func(p int) { progress = append(progress, p) })

	assert.False(t, res.Matched())
	assert.Equal(t, ReasonReadFailed, res.Reason)
	assert.Equal(t, MessageReadFailed, res.Message)
	assert.ErrorIs(t, res.Err, common.ErrReadFailed)
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, []int{33}, progress, "only the first window was hashed")
}

func TestVerify_ShortReadIsReadFailure(t *testing.T) {
	// Declares more bytes than it can deliver.
	bundle := &failingBlob{size: 100, failAfter: 100, err: nil}
	short := &shortBlob{failingBlob: bundle}

	res := NewVerifier().Verify(context.Background(), short,
		filex.NewMemBlob("b.md5", []byte(strings.Repeat("a", 32))), nil)
	assert.Equal(t, ReasonReadFailed, res.Reason)
}

type shortBlob struct{ *failingBlob }

func (s *shortBlob) ReadAt(p []byte, off int64) (int, error) { return len(p) / 2, nil }

func TestVerify_EmptyBundle(t *testing.T) {
	var progress []int
	res := NewVerifier().Verify(context.Background(),
		filex.NewMemBlob("empty.raucb", nil),
		filex.NewMemBlob("empty.md5", []byte("d41d8cd98f00b204e9800998ecf8427e")),
		func(p int) { progress = append(progress, p) })

	assert.True(t, res.Matched())
	assert.Equal(t, []int{100}, progress)
}

func TestVerify_IsDeterministic(t *testing.T) {
	data := randomBytes(t, 10_000)
	bundle := filex.NewMemBlob("b.raucb", data)
	sum := filex.NewMemBlob("b.md5", []byte(md5Hex(data)))
	v := &Verifier{WindowSize: 1000}

	first := v.Verify(context.Background(), bundle, sum, nil)
	second := v.Verify(context.Background(), bundle, sum, nil)
	assert.Equal(t, first, second)
}

func TestVerify_CancelledRunIsSuperseded(t *testing.T) {
	data := randomBytes(t, 10*4096)
	ctx, cancel := context.WithCancel(context.Background())

	v := &Verifier{WindowSize: 4096}
	res := v.Verify(ctx, filex.NewMemBlob("b.raucb", data), filex.NewMemBlob("b.md5", []byte(md5Hex(data))),
		func(p int) {
			if p >= 20 {
				cancel()
			}
		})

	assert.Equal(t, StateUnchecked, res.State)
	assert.True(t, res.Superseded())
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestVerify_MissingFiles(t *testing.T) {
	res := NewVerifier().Verify(context.Background(), nil, filex.NewMemBlob("b.md5", nil), nil)
	assert.Equal(t, StateUnchecked, res.State)
	assert.ErrorIs(t, res.Err, common.ErrFilesMissing)
	assert.False(t, res.Superseded())
}

func TestWindows(t *testing.T) {
	v := &Verifier{WindowSize: 10}
	tests := []struct {
		size int64
		want int64
	}{
		{0, 1},
		{1, 1},
		{10, 1},
		{11, 2},
		{100, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, v.Windows(tt.size), "size=%d", tt.size)
	}
	assert.Equal(t, int64(3), NewVerifier().Windows(12*1024*1024))
}

func TestExtractDigest(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "bare", in: "0123456789abcdef0123456789abcdef", want: "0123456789abcdef0123456789abcdef", ok: true},
		{name: "md5sum format", in: "D41D8CD98F00B204E9800998ECF8427E  file.raucb\n", want: "d41d8cd98f00b204e9800998ecf8427e", ok: true},
		{name: "embedded", in: "md5=abcdefabcdefabcdefabcdefabcdefab;", want: "abcdefabcdefabcdefabcdefabcdefab", ok: true},
		{name: "too short", in: "abcdef", ok: false},
		{name: "non hex", in: strings.Repeat("g", 32), ok: false},
		{name: "empty", in: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractDigest(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unchecked", StateUnchecked.String())
	assert.Equal(t, "matched", StateMatched.String())
	assert.Equal(t, "mismatched", StateMismatched.String())
}

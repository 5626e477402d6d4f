package storage

import (
	"crypto/aes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"runtime"
	"unicode/utf8"

	"golang.org/x/crypto/xts"
)

const (
	// keySize is two AES-256 keys, as XTS needs.
	keySize = 64

	// sealBlock is the cipher block size every payload is padded to.
	sealBlock = 16

	// sealHeader is the big-endian byte length that prefixes each payload.
	sealHeader = 4
)

// HardenedFactory creates storages whose lines are encrypted in memory with
// AES-XTS under a random per-factory key. Plaintext only exists in decoded
// lines, and Release wipes it.
//
// The key is locked into RAM where the platform allows it. Close wipes the
// key; the factory and its storages are unusable afterwards.
type HardenedFactory struct {
	base
	key    []byte
	cipher *xts.Cipher
	sector uint64
	locked bool
}

// NewHardenedFactory creates a hardened factory with a fresh key.
func NewHardenedFactory(opts ...Option) (*HardenedFactory, error) {
	f := &HardenedFactory{key: make([]byte, keySize)}
	f.base = newBase(f, KindHardened, opts)

	if err := lockMemory(f.key); err != nil {
		// Not fatal: RLIMIT_MEMLOCK may be zero in containers.
		f.opts.logger.Warn("key memory not locked", "err", err)
	} else {
		f.locked = true
	}
	if _, err := rand.Read(f.key); err != nil {
		f.Close()
		return nil, fmt.Errorf("generate key: %w: %w", ErrProtect, err)
	}
	c, err := xts.NewCipher(aes.NewCipher, f.key)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("init cipher: %w: %w", ErrProtect, err)
	}
	f.cipher = c
	return f, nil
}

// Close wipes and unlocks the key.
func (f *HardenedFactory) Close() error {
	clear(f.key)
	f.cipher = nil
	if !f.locked {
		return nil
	}
	f.locked = false
	return unlockMemory(f.key)
}

func (f *HardenedFactory) Hardened() bool { return true }

func (f *HardenedFactory) newBackend() backend {
	return newArrayLines[sealedLine](f.opts.blockSize)
}

// sealedLine is an encrypted payload: header, UTF-8 text, zero padding.
// The zero value is the empty line.
type sealedLine struct {
	owner  *HardenedFactory
	sector uint64
	data   []byte
	n      int
}

func (l sealedLine) Len() int { return l.n }
func (l sealedLine) size() int { return len(l.data) }

func (l sealedLine) Decode() DecodedLine {
	if len(l.data) == 0 {
		return newSecretLine(nil)
	}
	return l.owner.open(l)
}

// seal encrypts a copy of p, which holds n runes.
func (f *HardenedFactory) seal(p []byte, n int) sealedLine {
	if len(p) == 0 {
		return sealedLine{}
	}
	if f.cipher == nil {
		panic(fmt.Errorf("storage: seal after close: %w", ErrProtect))
	}
	size := (sealHeader + len(p) + sealBlock - 1) / sealBlock * sealBlock
	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf, uint32(len(p)))
	copy(buf[sealHeader:], p)
	f.sector++
	f.cipher.Encrypt(buf, buf, f.sector)
	return sealedLine{owner: f, sector: f.sector, data: buf, n: n}
}

// open decrypts l into a transient buffer that is wiped on every path out,
// and returns the runes as a handle that wipes them on Release.
func (f *HardenedFactory) open(l sealedLine) DecodedLine {
	if f.cipher == nil {
		panic(fmt.Errorf("storage: open after close: %w", ErrProtect))
	}
	tmp := make([]byte, len(l.data))
	defer clear(tmp)

	f.cipher.Decrypt(tmp, l.data, l.sector)
	size := int(binary.BigEndian.Uint32(tmp))
	if size > len(tmp)-sealHeader {
		panic(fmt.Errorf("storage: sealed line claims %d bytes in %d: %w", size, len(tmp), ErrProtect))
	}
	runes := make([]rune, 0, l.n)
	for p := tmp[sealHeader : sealHeader+size]; len(p) > 0; {
		r, w := utf8.DecodeRune(p)
		runes = append(runes, r)
		p = p[w:]
	}
	if len(runes) != l.n {
		clear(runes)
		panic(fmt.Errorf("storage: sealed line decoded to %d runes, want %d: %w", len(runes), l.n, ErrProtect))
	}
	return newSecretLine(runes)
}

// Encode seals s. The temporary byte copy is wiped, but s itself is an
// immutable string the caller remains responsible for. s must be valid UTF-8.
func (f *HardenedFactory) Encode(s string) TextLine {
	p := []byte(s)
	defer clear(p)
	return f.seal(p, utf8.RuneCount(p))
}

// EncodeBytes seals p. p is left untouched; callers holding plaintext should
// clear it afterwards. p must be valid UTF-8.
func (f *HardenedFactory) EncodeBytes(p []byte) TextLine {
	return f.seal(p, utf8.RuneCount(p))
}

// EncodeRunes seals r through a scratch buffer that is wiped before return.
func (f *HardenedFactory) EncodeRunes(r []rune) TextLine {
	p := make([]byte, 0, len(r)*utf8.UTFMax)
	defer func() { clear(p[:cap(p)]) }()
	for _, c := range r {
		p = utf8.AppendRune(p, c)
	}
	return f.seal(p, len(r))
}

// NewDecoded copies r into a decoded line that wipes itself on Release.
func (f *HardenedFactory) NewDecoded(r []rune) DecodedLine {
	return newSecretLine(append([]rune(nil), r...))
}

// Ensure re-encrypts lines that were not sealed by f, including lines of
// other hardened factories.
func (f *HardenedFactory) Ensure(l TextLine) TextLine {
	if sl, ok := l.(sealedLine); ok && (sl.owner == f || len(sl.data) == 0) {
		return sl
	}
	d := l.Decode()
	defer d.Release()
	return f.EncodeRunes(d.Runes())
}

// secretLine is a decoded hardened line. Release zeroes the runes; a
// cleanup does the same for handles that are dropped without Release.
type secretLine struct {
	runes []rune
}

func newSecretLine(runes []rune) *secretLine {
	d := &secretLine{runes: runes}
	if cap(runes) > 0 {
		runtime.AddCleanup(d, wipeRunes, runes[:cap(runes)])
	}
	return d
}

func wipeRunes(r []rune) { clear(r) }

func (d *secretLine) Len() int { return len(d.runes) }
func (d *secretLine) At(i int) rune { return d.runes[i] }
func (d *secretLine) Runes() []rune { return d.runes }

// String copies the plaintext into an immutable string that Release cannot
// wipe. Prefer Runes.
func (d *secretLine) String() string { return string(d.runes) }

func (d *secretLine) Release() {
	clear(d.runes[:cap(d.runes)])
	d.runes = nil
}

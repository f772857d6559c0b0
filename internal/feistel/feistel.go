// Package feistel implements the 16-round, 18-subkey, four-S-box Feistel
// block cipher keyed from the image header, in both whole-buffer and
// streaming-decrypt modes.
//
// The network's parameters (16 rounds, 32-bit halves, 18 subkeys, four
// 256-entry S-boxes, key schedule by repeatedly XORing key material into the
// subkeys and then overwriting subkeys and S-boxes pairwise with the
// evolving ciphertext of an all-zero block) are exactly the textbook
// 64-bit block cipher's, so the key schedule and block transform are
// delegated to golang.org/x/crypto/blowfish rather than reimplemented.
package feistel

import (
	"errors"
	"io"

	"golang.org/x/crypto/blowfish"
)

// ErrUnaligned is returned by Encrypt/Decrypt when the buffer length is not
// a multiple of the 8-byte block size.
var ErrUnaligned = errors.New("feistel: buffer is not 8-byte aligned")

// Cipher is keyed from an image header and operates on 8-byte blocks.
type Cipher struct {
	bc *blowfish.Cipher
}

// NewCipher builds the key schedule from the 8 key bytes it is given.
// pkg/fwimage passes the header's key field at fwhdr.KeyOffset (0x1E); the
// header's first 8 bytes (its ROM offset and scale fields) are not the key.
func NewCipher(headerKey [8]byte) *Cipher {
	bc, err := blowfish.NewCipher(headerKey[:])
	if err != nil {
		// blowfish.NewCipher only fails for key lengths outside [1,56];
		// headerKey is always exactly 8 bytes.
		panic("feistel: unreachable key schedule failure: " + err.Error())
	}
	return &Cipher{bc: bc}
}

// Encrypt encrypts buf in place, 8 bytes at a time.
func (c *Cipher) Encrypt(buf []byte) error {
	if len(buf)%8 != 0 {
		return ErrUnaligned
	}
	for i := 0; i < len(buf); i += 8 {
		c.bc.Encrypt(buf[i:i+8], buf[i:i+8])
	}
	return nil
}

// Decrypt decrypts buf in place, 8 bytes at a time.
func (c *Cipher) Decrypt(buf []byte) error {
	if len(buf)%8 != 0 {
		return ErrUnaligned
	}
	for i := 0; i < len(buf); i += 8 {
		c.bc.Decrypt(buf[i:i+8], buf[i:i+8])
	}
	return nil
}

// StreamDecrypter decrypts a byte source one plaintext byte at a time,
// decrypting whole 8-byte blocks on demand. It is used to feed the LZ
// streaming decoder so an unknown-length compressed payload can be decoded
// without first reading past its end.
type StreamDecrypter struct {
	c      *Cipher
	next   func() (byte, bool)
	block  [8]byte
	pos    int
	filled int
	done   bool
}

// NewStreamDecrypter returns a decrypter that pulls ciphertext bytes from
// next (ok=false signals the underlying source is exhausted) and emits
// plaintext bytes via ReadByte.
func (c *Cipher) NewStreamDecrypter(next func() (byte, bool)) *StreamDecrypter {
	return &StreamDecrypter{c: c, next: next}
}

// ReadByte implements io.ByteReader. When the underlying source runs out
// at a block boundary it returns io.EOF; when it runs out partway through
// a block it returns io.ErrUnexpectedEOF, and io.EOF on every later call.
func (s *StreamDecrypter) ReadByte() (byte, error) {
	if s.pos >= s.filled {
		if s.done {
			return 0, io.EOF
		}
		var ciphertext [8]byte
		n := 0
		for n < 8 {
			b, ok := s.next()
			if !ok {
				break
			}
			ciphertext[n] = b
			n++
		}
		if n < 8 {
			s.done = true
			if n == 0 {
				return 0, io.EOF
			}
			return 0, io.ErrUnexpectedEOF
		}
		s.c.bc.Decrypt(s.block[:], ciphertext[:])
		s.pos = 0
		s.filled = 8
	}
	b := s.block[s.pos]
	s.pos++
	return b, nil
}

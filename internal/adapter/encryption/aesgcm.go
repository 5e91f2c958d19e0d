package encryption

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/scrypt"

	"github.com/semmidev/dbstash/internal/domain"
)

// File layout:
//
//	magic(8) | salt(16) | nonce(12) | record...
//	record = flag(1) | length(4, big endian) | ciphertext
//
// Each record seals at most chunkSize bytes. The flag marks the final record
// and is authenticated, so truncation is detected on open.
const (
	chunkSize = 64 * 1024
	saltSize  = 16
	keySize   = 32

	flagMore  byte = 0
	flagFinal byte = 1
)

var magic = []byte("DBSTASH\x01")

// scrypt cost parameters
var (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

type AESGCMSealer struct {
	password string
}

func NewAESGCM(password string) *AESGCMSealer {
	return &AESGCMSealer{password: password}
}

func (s *AESGCMSealer) Extension() string { return ".enc" }

func (s *AESGCMSealer) Preflight() error {
	if s.password == "" {
		return &domain.ConfigError{Field: "backup.password", Reason: "encryption requested but no password is set"}
	}
	return nil
}

func (s *AESGCMSealer) Seal(ctx context.Context, sourcePath, destPath string) error {
	if err := s.Preflight(); err != nil {
		return err
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return &domain.CompressError{Err: fmt.Errorf("failed to open source file: %w", err)}
	}
	defer src.Close()

	dst, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return &domain.CompressError{Err: fmt.Errorf("failed to create dest file: %w", err)}
	}
	defer dst.Close()

	if err := encrypt(ctx, dst, src, s.password); err != nil {
		return &domain.CompressError{Err: fmt.Errorf("failed to encrypt: %w", err)}
	}
	if err := dst.Close(); err != nil {
		return &domain.CompressError{Err: fmt.Errorf("failed to close dest file: %w", err)}
	}
	return nil
}

// Open reverses Seal.
func (s *AESGCMSealer) Open(ctx context.Context, sourcePath, destPath string) error {
	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}
	defer dst.Close()

	if err := decrypt(ctx, dst, src, s.password); err != nil {
		return fmt.Errorf("failed to decrypt: %w", err)
	}
	return dst.Close()
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func chunkNonce(base []byte, counter uint64) []byte {
	nonce := append([]byte(nil), base...)
	tail := nonce[len(nonce)-8:]
	binary.BigEndian.PutUint64(tail, binary.BigEndian.Uint64(tail)^counter)
	return nonce
}

func encrypt(ctx context.Context, dst io.Writer, src io.Reader, password string) error {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return err
	}
	base := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, base); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	for _, part := range [][]byte{magic, salt, base} {
		if _, err := dst.Write(part); err != nil {
			return err
		}
	}

	cur := make([]byte, chunkSize)
	next := make([]byte, chunkSize)
	n, readErr := io.ReadFull(src, cur)

	header := make([]byte, 5)
	for counter := uint64(0); ; counter++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
			return readErr
		}
		last := readErr != nil

		var m int
		var nextErr error
		if !last {
			m, nextErr = io.ReadFull(src, next)
			switch nextErr {
			case nil, io.ErrUnexpectedEOF:
			case io.EOF:
				last = true
			default:
				return nextErr
			}
		}

		flag := flagMore
		if last {
			flag = flagFinal
		}
		sealed := gcm.Seal(nil, chunkNonce(base, counter), cur[:n], []byte{flag})
		header[0] = flag
		binary.BigEndian.PutUint32(header[1:], uint32(len(sealed)))
		if _, err := dst.Write(header); err != nil {
			return err
		}
		if _, err := dst.Write(sealed); err != nil {
			return err
		}

		if last {
			return nil
		}
		cur, next = next, cur
		n, readErr = m, nextErr
	}
}

func decrypt(ctx context.Context, dst io.Writer, src io.Reader, password string) error {
	head := make([]byte, len(magic)+saltSize)
	if _, err := io.ReadFull(src, head); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(head[:len(magic)], magic) {
		return errors.New("not a sealed backup")
	}
	gcm, err := newGCM(password, head[len(magic):])
	if err != nil {
		return err
	}
	base := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(src, base); err != nil {
		return fmt.Errorf("read nonce: %w", err)
	}

	header := make([]byte, 5)
	maxSealed := chunkSize + gcm.Overhead()
	for counter := uint64(0); ; counter++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := io.ReadFull(src, header); err != nil {
			return fmt.Errorf("truncated at record %d: %w", counter, err)
		}
		flag := header[0]
		size := int(binary.BigEndian.Uint32(header[1:]))
		if (flag != flagMore && flag != flagFinal) || size > maxSealed {
			return fmt.Errorf("corrupt record %d", counter)
		}
		sealed := make([]byte, size)
		if _, err := io.ReadFull(src, sealed); err != nil {
			return fmt.Errorf("truncated at record %d: %w", counter, err)
		}
		plain, err := gcm.Open(nil, chunkNonce(base, counter), sealed, []byte{flag})
		if err != nil {
			return fmt.Errorf("authenticate record %d: %w", counter, err)
		}
		if _, err := dst.Write(plain); err != nil {
			return err
		}
		if flag == flagFinal {
			var extra [1]byte
			if n, _ := src.Read(extra[:]); n > 0 {
				return errors.New("trailing data after final record")
			}
			return nil
		}
	}
}

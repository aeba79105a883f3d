package secret

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"golang.org/x/crypto/argon2"
)

type (
	Argon2Params struct {
		Time    uint32
		Memory  uint32
		Threads uint8
		SaltLen uint32
		KeyLen  uint32
	}

	argon2Hasher struct {
		params  Argon2Params
		entropy io.Reader
	}
)

var (
	errBadArgon2Encoding = errors.New("argon2id encoding is malformed")
)

func DefaultArgon2Params() Argon2Params {
	threads := runtime.NumCPU() / 2
	if threads < 1 {
		threads = 1
	}
	// 7 passes over 10 MB should be a good replacement
	// for 1 pass over 64 MB of ram.
	return Argon2Params{
		Time:    7,
		Memory:  10 * 1024,
		Threads: uint8(threads),
		SaltLen: 16,
		KeyLen:  32,
	}
}

// Argon2id returns a salted hash transform. The encoded material follows the
// usual $argon2id$v=..$m=..,t=..,p=..$salt$hash layout so old hashes keep
// working after the defaults change.
func Argon2id(params Argon2Params, entropy io.Reader) Transform {
	if entropy == nil {
		entropy = rand.Reader
	}
	def := DefaultArgon2Params()
	if params.Time == 0 {
		params.Time = def.Time
	}
	if params.Memory == 0 {
		params.Memory = def.Memory
	}
	if params.Threads == 0 {
		params.Threads = def.Threads
	}
	if params.SaltLen == 0 {
		params.SaltLen = def.SaltLen
	}
	if params.KeyLen == 0 {
		params.KeyLen = def.KeyLen
	}
	return &argon2Hasher{params: params, entropy: entropy}
}

func (a *argon2Hasher) Scheme() Scheme { return SchemeArgon2id }

func (a *argon2Hasher) Seal(raw PlainText) (Material, error) {
	salt := make([]byte, a.params.SaltLen)
	if _, err := io.ReadFull(a.entropy, salt); err != nil {
		return Material{}, fmt.Errorf("secret: unable to generate salt, cause %w", err)
	}
	p := a.params
	key := argon2.IDKey(raw, salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	enc := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
	return Material{Scheme: SchemeArgon2id, Data: []byte(enc)}, nil
}

func (a *argon2Hasher) Match(presented PlainText, stored Material) (bool, error) {
	if err := checkScheme(a, stored); err != nil {
		return false, err
	}
	p, salt, key, err := decodeArgon2(string(stored.Data))
	if err != nil {
		return false, InvalidSecretMaterial{Scheme: stored.Scheme, cause: err}
	}
	other := argon2.IDKey(presented, salt, p.Time, p.Memory, p.Threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

func decodeArgon2(enc string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params
	parts := strings.Split(enc, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, errBadArgon2Encoding
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, errBadArgon2Encoding
	} else if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("unsupported argon2 version %v", version)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, errBadArgon2Encoding
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, errBadArgon2Encoding
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, errBadArgon2Encoding
	}
	if p.Time == 0 || p.Threads == 0 {
		return p, nil, nil, errBadArgon2Encoding
	}
	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(key))
	return p, salt, key, nil
}

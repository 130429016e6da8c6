package service

import (
	"encoding/hex"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

type OwnerKind string

const (
	OwnerUser      OwnerKind = "user"
	OwnerAnonymous OwnerKind = "anonymous"
)

// maxTokenLength bounds client supplied anonymous tokens. Longer values are
// treated as absent.
const maxTokenLength = 128

// Owner identifies whose cart an operation acts on. Anonymous tokens never
// reach storage in clear text: the key holds a keyed hash of the token.
type Owner struct {
	Kind   OwnerKind
	UserID uuid.UUID
	Token  string
	key    string
}

func (o Owner) Key() string {
	return o.key
}

func (o Owner) IsUser() bool {
	return o.Kind == OwnerUser
}

func (o Owner) userID() *uuid.UUID {
	if !o.IsUser() {
		return nil
	}
	id := o.UserID
	return &id
}

func (o Owner) String() string {
	if o.IsUser() {
		return o.key
	}
	// never log the raw token
	return "anonymous"
}

type ownerKeys struct {
	secret [32]byte
}

func newOwnerKeys(secretKey string) ownerKeys {
	return ownerKeys{secret: blake2b.Sum256([]byte(secretKey))}
}

func (k ownerKeys) user(id uuid.UUID) Owner {
	return Owner{Kind: OwnerUser, UserID: id, key: "user:" + id.String()}
}

func (k ownerKeys) anonymous(token string) Owner {
	h, err := blake2b.New256(k.secret[:])
	if err != nil {
		// a 32 byte key is always accepted
		panic(err)
	}
	h.Write([]byte(token))
	return Owner{Kind: OwnerAnonymous, Token: token, key: "anon:" + hex.EncodeToString(h.Sum(nil))}
}

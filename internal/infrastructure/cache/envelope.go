package cache

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

type entryKind uint8

const (
	kindValue entryKind = 1
	kindLink  entryKind = 2
)

// envelope is the stored form of every entry: either an encoded value or a
// link to another entry's namespace and sanitized key.
type envelope struct {
	_         struct{} `cbor:",toarray"`
	Kind      entryKind
	Payload   []byte
	Namespace string
	Key       string
}

var (
	envEnc cbor.EncMode
	envDec cbor.DecMode
)

func init() {
	var err error
	if envEnc, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if envDec, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(err)
	}
}

func encodeValue(payload []byte) ([]byte, error) {
	return envEnc.Marshal(envelope{Kind: kindValue, Payload: payload})
}

func encodeLink(namespace, key string) ([]byte, error) {
	return envEnc.Marshal(envelope{Kind: kindLink, Namespace: namespace, Key: key})
}

func decodeEnvelope(b []byte) (envelope, error) {
	var env envelope
	if err := envDec.Unmarshal(b, &env); err != nil {
		return envelope{}, err
	}
	switch env.Kind {
	case kindValue:
	case kindLink:
		if env.Namespace == "" {
			return envelope{}, fmt.Errorf("link without target")
		}
	default:
		return envelope{}, fmt.Errorf("unknown entry kind %d", env.Kind)
	}
	return env, nil
}

func (e envelope) target() string {
	return e.Namespace + KeySeparator + e.Key
}

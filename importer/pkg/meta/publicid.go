package meta

import (
	"fmt"

	"github.com/sqids/sqids-go"
)

// Public identifiers are the only identifiers exposed outside the pipeline.
// Each one is a reversible sqids encoding of an internal sequence number;
// the raw integer never leaves the store.
const (
	publicIDAlphabet  = "3wfhiuXscSMHTkeEWGLaYNAgKJq7zx8RQdmPnyD6b5BrtFC2v9Z4VpU"
	publicIDMinLength = 5
)

var publicIDCodec = mustPublicIDCodec()

func mustPublicIDCodec() *sqids.Sqids {
	s, err := sqids.New(sqids.Options{
		Alphabet:  publicIDAlphabet,
		MinLength: publicIDMinLength,
	})
	if err != nil {
		panic(fmt.Sprintf("invalid public id codec options: %v", err))
	}
	return s
}

// EncodePublicID encodes a sequence number as a public identifier.
func EncodePublicID(seq uint64) (string, error) {
	id, err := publicIDCodec.Encode([]uint64{seq})
	if err != nil {
		return "", fmt.Errorf("failed to encode public id for sequence %d: %w", seq, err)
	}
	return id, nil
}

// DecodePublicID decodes a public identifier back to its sequence number.
// Non-canonical encodings are rejected so that decode(encode(x)) == x is the
// only accepted form.
func DecodePublicID(id string) (uint64, error) {
	nums := publicIDCodec.Decode(id)
	if len(nums) != 1 {
		return 0, fmt.Errorf("invalid public id %q", id)
	}
	canonical, err := EncodePublicID(nums[0])
	if err != nil {
		return 0, err
	}
	if canonical != id {
		return 0, fmt.Errorf("non-canonical public id %q", id)
	}
	return nums[0], nil
}

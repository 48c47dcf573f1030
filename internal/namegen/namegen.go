// Package namegen produces human-readable session identifiers.
package namegen

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
)

// Kind selects the shape of a generated name.
type Kind int

const (
	// Animal produces "<adjective>-<animal>" names.
	Animal Kind = iota
	// SixChar produces a six-character lowercase alphanumeric name.
	SixChar
)

const maxAnimalAttempts = 20

const sixCharAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// existsChecker is the subset of store.StringStore the generator needs.
// Defined locally so this package has no dependency on internal/store.
type existsChecker interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// AllocateUnique proposes names of the requested kind until one is not
// already present in store, up to maxAnimalAttempts for Animal. After that
// many collisions it falls back to SixChar, whose space is large enough
// that a further collision is not retried.
func AllocateUnique(ctx context.Context, kind Kind, store existsChecker) (string, error) {
	if kind == Animal {
		name, ok, err := tryUnique(ctx, store, maxAnimalAttempts, randomAnimal)
		if err != nil {
			return "", err
		}
		if ok {
			return name, nil
		}
		kind = SixChar
	}

	name, ok, err := tryUnique(ctx, store, 1, randomSixChar)
	if err != nil {
		return "", err
	}
	if !ok {
		// The six-character space is ~2.2B; treat persistent collision as a
		// store problem rather than retrying indefinitely.
		return "", fmt.Errorf("namegen: could not find unique %v name", kind)
	}
	return name, nil
}

func tryUnique(ctx context.Context, store existsChecker, attempts int, propose func() string) (string, bool, error) {
	for i := 0; i < attempts; i++ {
		candidate := propose()
		exists, err := store.Exists(ctx, candidate)
		if err != nil {
			return "", false, err
		}
		if !exists {
			return candidate, true, nil
		}
	}
	return "", false, nil
}

func randomAnimal() string {
	adjective := shortAdjectives[rand.IntN(len(shortAdjectives))]
	animal := animals[rand.IntN(len(animals))]
	return fmt.Sprintf("%s-%s", adjective, animal)
}

func randomSixChar() string {
	var b strings.Builder
	b.Grow(6)
	for i := 0; i < 6; i++ {
		b.WriteByte(sixCharAlphabet[rand.IntN(len(sixCharAlphabet))])
	}
	return b.String()
}

var animals = []string{
	"ant", "bat", "bison", "camel", "cat", "cow", "crab", "deer", "dog", "duck", "eagle", "fish",
	"fox", "frog", "gecko", "goat", "goose", "hare", "horse", "koala", "lion", "lynx", "mole",
	"mouse", "otter", "panda", "pig", "prawn", "puma", "quail", "sheep", "sloth", "snake", "swan",
	"tiger", "wolf", "zebra",
}

var shortAdjectives = []string{
	"able", "acid", "adept", "aged", "airy", "ajar", "awry", "back", "bare", "beefy", "big",
	"blond", "blue", "bold", "bossy", "brave", "brief", "broad", "busy", "calm", "cheap", "chill",
	"clean", "coy", "crazy", "curvy", "cute", "damp", "dear", "deep", "dizzy", "dopey", "drunk",
	"dry", "dull", "dusty", "easy", "edgy", "fiery", "fancy", "fat", "few", "fine", "flat", "foxy",
	"fresh", "frisky", "full", "fun", "glad", "grand", "great", "green", "happy", "hard", "hazy",
	"icy", "jolly", "jumpy", "kind", "lame", "late", "leafy", "light", "loyal", "lucky", "mad",
	"mean", "neat", "new", "nice", "noble", "odd", "old", "perky", "proud", "quick", "quiet",
	"rare", "red", "ripe", "rotten", "safe", "salty", "sandy", "scary", "shaky", "sharp", "short",
	"shy", "silly", "sleek", "slim", "slow", "small", "smart", "smug", "snappy", "soggy", "sour",
	"spicy", "stale", "stark", "steep", "sticky", "stout", "super", "sweet", "sunny", "tall",
	"tame", "tart", "tasty", "tepid", "tiny", "tipsy", "tough", "true", "vague", "vivid", "warm",
	"weak", "wild", "wise", "wooden", "witty", "zesty",
}

package bridge

import (
	"hash/fnv"
	"math/rand"
)

// Word and glyph tables for generated identities. Changing these changes
// every derived identity, so additions should only ever append.
var (
	adjectives = []string{
		"Swift", "Calm", "Brave", "Bright", "Clever", "Eager", "Gentle", "Happy",
		"Jolly", "Keen", "Lively", "Merry", "Noble", "Proud", "Quick", "Quiet",
		"Sunny", "Witty", "Bold", "Cosy", "Crisp", "Dapper", "Fancy", "Glad",
		"Lucky", "Mellow", "Nimble", "Peppy", "Sleek", "Spry", "Vivid", "Zesty",
	}
	nouns = []string{
		"Fox", "Owl", "Wolf", "Bear", "Hawk", "Lynx", "Otter", "Panda",
		"Raven", "Seal", "Tiger", "Whale", "Crane", "Deer", "Eagle", "Finch",
		"Heron", "Koala", "Lemur", "Moose", "Newt", "Orca", "Puffin", "Quail",
		"Robin", "Sparrow", "Swan", "Toucan", "Viper", "Wren", "Yak", "Zebra",
	}
	avatars = []string{
		"🦊", "🦉", "🐺", "🐻", "🦅", "🐱", "🦦", "🐼",
		"🐦", "🦭", "🐯", "🐳", "🦩", "🦌", "🦆", "🐤",
		"🦜", "🐨", "🐒", "🫎", "🦎", "🐬", "🐧", "🐔",
		"🐞", "🐿", "🦢", "🦚", "🐍", "🐛", "🐂", "🦓",
	}
)

// DeriveIdentity maps a device fingerprint to a stable (name, avatar) pair.
// Disjoint 16-bit slices of the FNV-1a hash index each table independently,
// so the same device always gets the same identity across restarts. Distinct
// devices can collide; no uniqueness is promised.
func DeriveIdentity(deviceID string) (name, avatar string) {
	h := fnv.New64a()
	h.Write([]byte(deviceID))
	sum := h.Sum64()

	adj := adjectives[(sum&0xFFFF)%uint64(len(adjectives))]
	noun := nouns[((sum>>16)&0xFFFF)%uint64(len(nouns))]
	avatar = avatars[((sum>>32)&0xFFFF)%uint64(len(avatars))]
	return adj + " " + noun, avatar
}

// RandomIdentity assigns a uniformly random (name, avatar) pair for
// connections that present no device fingerprint.
func RandomIdentity() (name, avatar string) {
	adj := adjectives[rand.Intn(len(adjectives))]
	noun := nouns[rand.Intn(len(nouns))]
	avatar = avatars[rand.Intn(len(avatars))]
	return adj + " " + noun, avatar
}

// UserIDForDevice returns the stable user id for a device fingerprint.
func UserIDForDevice(deviceID string) string {
	return "device_" + deviceID
}

/*
Copyright © 2025 Jamie Mulcahy <jamie@mulcahy.dev>
*/

package main

import (
	"crypto/rand"
	"encoding/hex"
)

// Word lists for anonymous display names. A participant who has never
// introduced themselves shows up as e.g. "Curious Heron".
var nameAdjectives = []string{
	"Agile", "Amber", "Bold", "Brave", "Breezy", "Bright", "Calm", "Candid",
	"Cheerful", "Clever", "Cosmic", "Curious", "Daring", "Dapper", "Eager",
	"Earnest", "Electric", "Fearless", "Gentle", "Glad", "Golden", "Happy",
	"Hardy", "Honest", "Humble", "Jolly", "Keen", "Kind", "Lively", "Lucky",
	"Mellow", "Merry", "Mighty", "Nimble", "Noble", "Patient", "Peppy",
	"Plucky", "Proud", "Quick", "Quiet", "Rapid", "Sassy", "Sharp", "Shiny",
	"Sincere", "Snappy", "Speedy", "Spry", "Steady", "Sunny", "Swift",
	"Thoughtful", "Tidy", "Tranquil", "Trusty", "Upbeat", "Vivid", "Warm",
	"Witty", "Zesty",
}

var nameAnimals = []string{
	"Albatross", "Antelope", "Badger", "Beaver", "Bison", "Bobcat", "Capybara",
	"Caribou", "Chinchilla", "Cougar", "Coyote", "Crane", "Dolphin", "Falcon",
	"Ferret", "Finch", "Fox", "Gazelle", "Gecko", "Gibbon", "Heron", "Ibex",
	"Iguana", "Jackal", "Jaguar", "Kestrel", "Kingfisher", "Koala", "Lemur",
	"Leopard", "Llama", "Lynx", "Magpie", "Manatee", "Marmot", "Meerkat",
	"Mongoose", "Narwhal", "Ocelot", "Osprey", "Otter", "Owl", "Panda",
	"Pangolin", "Pelican", "Penguin", "Puffin", "Quokka", "Raccoon", "Raven",
	"Salamander", "Seal", "Sparrow", "Stoat", "Swift", "Tapir", "Toucan",
	"Walrus", "Wombat", "Wren",
}

// randomIndex returns a uniform-enough index into a list of up to 256 entries.
func randomIndex(n int) int {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return int(b[0]) % n
}

// randomDisplayName picks a fresh two-word anonymous name.
func randomDisplayName() string {
	return nameAdjectives[randomIndex(len(nameAdjectives))] + " " +
		nameAnimals[randomIndex(len(nameAnimals))]
}

// newParticipantID mints a 32-char hex identity id.
func newParticipantID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// newRetroID generates an 8-char room id in the same alphabet the share
// links use. Collision checking against the store happens at creation.
func newRetroID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	out := make([]byte, 8)
	for i := range out {
		out[i] = letters[int(buf[i])%len(letters)]
	}
	return string(out)
}

// newOwnerSecret generates the owner capability token handed out exactly
// once at room creation.
func newOwnerSecret() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

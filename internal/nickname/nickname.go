package nickname

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Characters is the number of color/symbol pairs in a nickname.
const Characters = 2

type color struct {
	name string
	hex  string
}

type symbol struct {
	name  string
	glyph string
}

var colors = []color{
	{"Aqua", "#00FFFF"},
	{"Black", "#000000"},
	{"Blue", "#0000FF"},
	{"Brown", "#A52A2A"},
	{"Crimson", "#DC143C"},
	{"Forest", "#228B22"},
	{"Gold", "#FFD700"},
	{"Gray", "#808080"},
	{"Green", "#008000"},
	{"Indigo", "#4B0082"},
	{"Lime", "#00FF00"},
	{"Magenta", "#FF00FF"},
	{"Maroon", "#800000"},
	{"Navy", "#000080"},
	{"Olive", "#808000"},
	{"Orange", "#FFA500"},
	{"Pink", "#FFC0CB"},
	{"Purple", "#800080"},
	{"Red", "#FF0000"},
	{"Teal", "#008080"},
	{"Turquoise", "#40E0D0"},
	{"Violet", "#EE82EE"},
	{"Yellow", "#FFFF00"},
}

var symbols = []symbol{
	{"Alpha", "α"},
	{"Anchor", "⚓"},
	{"Atom", "⚛"},
	{"Club", "♣"},
	{"Comet", "☄"},
	{"Crown", "♛"},
	{"Diamond", "♦"},
	{"Flower", "✿"},
	{"Heart", "♥"},
	{"Hourglass", "⌛"},
	{"Moon", "☾"},
	{"Omega", "Ω"},
	{"Peace", "☮"},
	{"Snowflake", "❄"},
	{"Spade", "♠"},
	{"Star", "★"},
	{"Sun", "☀"},
	{"Umbrella", "☂"},
	{"Yin Yang", "☯"},
}

// Character is one colored symbol of a nickname.
type Character struct {
	Color    string `json:"color"`
	ColorHex string `json:"color_hex"`
	Symbol   string `json:"symbol"`
	Glyph    string `json:"glyph"`
}

func (c Character) String() string {
	return c.Color + " " + c.Symbol
}

type Nickname struct {
	Characters []Character `json:"characters"`
}

// FromSeed derives a nickname from a staker address. Non-address seeds are hashed as text.
// The same seed always yields the same nickname.
func FromSeed(seed string) Nickname {
	material := []byte(seed)
	if common.IsHexAddress(seed) {
		material = common.HexToAddress(seed).Bytes()
	}
	digest := crypto.Keccak256(material)

	chars := make([]Character, Characters)
	for i := range chars {
		c := colors[int(digest[2*i])%len(colors)]
		s := symbols[int(digest[2*i+1])%len(symbols)]
		chars[i] = Character{Color: c.name, ColorHex: c.hex, Symbol: s.name, Glyph: s.glyph}
	}
	return Nickname{Characters: chars}
}

func (n Nickname) String() string {
	parts := make([]string, len(n.Characters))
	for i, c := range n.Characters {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

// Icon is the glyphs of the nickname without spacing.
func (n Nickname) Icon() string {
	var b strings.Builder
	for _, c := range n.Characters {
		b.WriteString(c.Glyph)
	}
	return b.String()
}

package theme

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
)

type RGB [3]uint8

type Palette struct {
	Name   string
	Colors []RGB
}

// Acid is the built-in palette: deep purple through magenta and orange to
// a bright yellow, the same ramp as plasma.
func Acid() *Palette {
	return &Palette{
		Name: "acid",
		Colors: []RGB{
			{13, 8, 135},
			{60, 4, 156},
			{98, 0, 164},
			{132, 5, 167},
			{163, 29, 154},
			{188, 55, 132},
			{210, 82, 109},
			{229, 110, 87},
			{243, 141, 65},
			{251, 176, 46},
			{240, 249, 33},
		},
	}
}

// LoadGPL reads a GIMP palette file
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("open palette"))
	}
	defer f.Close()

	p := &Palette{}
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "Name:") {
			p.Name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
			continue
		}

		// Skip headers and comments
		if line == "" || line[0] == '#' || strings.HasPrefix(line, "GIMP") || strings.HasPrefix(line, "Columns") {
			continue
		}

		// first 3 fields are R G B
		fields := strings.Fields(line)
		if len(fields) >= 3 {
			r, err1 := strconv.Atoi(fields[0])
			g, err2 := strconv.Atoi(fields[1])
			b, err3 := strconv.Atoi(fields[2])
			if err1 == nil && err2 == nil && err3 == nil {
				p.Colors = append(p.Colors, RGB{uint8(r), uint8(g), uint8(b)})
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fault.Wrap(err, fmsg.With("read palette"))
	}

	if len(p.Colors) == 0 {
		return nil, fault.New(fmt.Sprintf("no colors found in palette %s", path))
	}

	return p, nil
}

// LoadOrDefault loads path, or returns the built-in palette when path is
// empty or unreadable (the error is returned alongside).
func LoadOrDefault(path string) (*Palette, error) {
	if path == "" {
		return Acid(), nil
	}
	p, err := LoadGPL(path)
	if err != nil {
		return Acid(), err
	}
	return p, nil
}

// Lookup returns interpolated color for normalized value 0-1
func (p *Palette) Lookup(norm float64) RGB {
	if norm <= 0 {
		return p.Colors[0]
	}
	if norm >= 1 {
		return p.Colors[len(p.Colors)-1]
	}

	pos := norm * float64(len(p.Colors)-1)
	i := int(pos)
	frac := pos - float64(i)

	c0 := p.Colors[i]
	c1 := p.Colors[i+1]

	return RGB{
		lerp(c0[0], c1[0], frac),
		lerp(c0[1], c1[1], frac),
		lerp(c0[2], c1[2], frac),
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a)*(1-t) + float64(b)*t)
}

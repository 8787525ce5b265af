package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-acid/midi"
	"go-acid/theme"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "outputs":
		listOutputs()
	case "note":
		if len(os.Args) < 3 {
			usage()
			return
		}
		sendNote(os.Args[2], os.Args[3:])
	case "panic":
		if len(os.Args) < 3 {
			usage()
			return
		}
		sendPanic(os.Args[2])
	case "detect":
		detectLaunchpad()
	case "leds":
		testLEDs()
	case "poll":
		pollDevices()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("go-acid MIDI test tools")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list              - List all MIDI ports")
	fmt.Println("  outputs           - List output ids (ports and serial lines)")
	fmt.Println("  note <id> [note]  - Play one note on an output, default 48")
	fmt.Println("  panic <id>        - Send all-notes-off on every channel")
	fmt.Println("  detect            - Find Launchpad X")
	fmt.Println("  leds              - Paint the Launchpad with the acid palette")
	fmt.Println("  poll              - Poll for device changes")
}

func newOutput() *midi.Output {
	return midi.NewOutput(nil, midi.RtMidiBackend{}, midi.SerialBackend{})
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

func listOutputs() {
	out := newOutput()
	devices := out.Devices()
	if len(devices) == 0 {
		fmt.Println("No outputs found")
		return
	}
	for _, d := range devices {
		fmt.Printf("  %-40s %s\n", d.ID, d.Name)
	}
}

func sendNote(id string, args []string) {
	note := 48
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 || n > 127 {
			fmt.Printf("Bad note %q\n", args[0])
			return
		}
		note = n
	}

	out := newOutput()
	defer out.Close()
	if err := out.SelectOutput(id); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	if entry, ok := out.SendNoteOn(uint8(note), 100); ok {
		fmt.Println(entry.Description)
	}
	time.Sleep(500 * time.Millisecond)
	if entry, ok := out.SendNoteOff(uint8(note)); ok {
		fmt.Println(entry.Description)
	}
}

func sendPanic(id string) {
	out := newOutput()
	defer out.Close()
	if err := out.SelectOutput(id); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	for ch := 0; ch < 16; ch++ {
		out.SetChannel(ch)
		out.Panic()
	}
	fmt.Println("Sent all-notes-off on 16 channels")
}

func isLaunchpadPort(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && strings.Contains(name, "midi")
}

func findLaunchpad() (drivers.In, drivers.Out) {
	var in drivers.In
	var out drivers.Out
	for _, p := range gomidi.GetInPorts() {
		if isLaunchpadPort(p.String()) {
			in = p
			break
		}
	}
	for _, p := range gomidi.GetOutPorts() {
		if isLaunchpadPort(p.String()) {
			out = p
			break
		}
	}
	return in, out
}

func detectLaunchpad() {
	fmt.Println("Looking for Launchpad X...")

	in, out := findLaunchpad()
	if in != nil {
		fmt.Printf("Found input: %s\n", in.String())
	}
	if out != nil {
		fmt.Printf("Found output: %s\n", out.String())
	}

	if in != nil && out != nil {
		fmt.Println("\nLaunchpad X detected!")
	} else {
		fmt.Println("\nLaunchpad X not found")
	}
}

func testLEDs() {
	fmt.Println("Testing LED control...")

	in, out := findLaunchpad()
	if in == nil || out == nil {
		fmt.Println("No Launchpad found")
		return
	}

	lp, err := midi.NewLaunchpadController(out.String(), in, out, nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer lp.Close()

	palette := theme.Acid()
	var updates []midi.LEDUpdate
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			c := palette.Lookup(float64(row*8+col) / 63)
			updates = append(updates, midi.LEDUpdate{Row: row, Col: col, Color: [3]uint8(c)})
		}
	}
	if err := lp.SetLEDBatch(updates); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("Press a pad to see its event, Enter to clear...")
	go func() {
		for ev := range lp.PadEvents() {
			fmt.Printf("  pad row=%d col=%d velocity=%d\n", ev.Row, ev.Col, ev.Velocity)
		}
	}()
	fmt.Scanln()

	fmt.Println("Done!")
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect Launchpad to test. Ctrl+C to exit.")

	lastIn := ""
	lastOut := ""

	for {
		var inNames, outNames []string
		for _, p := range gomidi.GetInPorts() {
			inNames = append(inNames, p.String())
		}
		for _, p := range gomidi.GetOutPorts() {
			outNames = append(outNames, p.String())
		}

		currentIn := strings.Join(inNames, ",")
		currentOut := strings.Join(outNames, ",")

		if currentIn != lastIn || currentOut != lastOut {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", inNames)
			fmt.Printf("  Outputs: %v\n", outNames)

			for _, name := range inNames {
				if isLaunchpadPort(name) {
					fmt.Println("  -> Launchpad detected!")
				}
			}

			lastIn = currentIn
			lastOut = currentOut
		}

		time.Sleep(2 * time.Second)
	}
}

// uvc-probe lists attached USB capture devices and the stream modes
// each one supports, for picking vendor/product and mode flags.
package main

import (
	"flag"
	"fmt"
	"log"

	"uvc-camd/pkg/uvc/v4l2dev"
)

var modes = flag.Bool("modes", true, "probe supported stream modes")

func main() {
	flag.Parse()

	devices, err := v4l2dev.Devices()
	if err != nil {
		log.Fatalln(err)
	}
	if len(devices) == 0 {
		fmt.Println("no capture devices found")
		return
	}

	for _, d := range devices {
		fmt.Printf("%s: vendor=0x%04x product=0x%04x serial=%q bus=%d addr=%d\n",
			d.Node, d.Vendor, d.Product, d.Serial, d.Bus, d.Address)
		if !*modes {
			continue
		}
		for _, m := range v4l2dev.Probe(d.Node) {
			fmt.Printf("  %s\n", m)
		}
	}
}

package v4l2dev

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const sysfsRoot = "/sys/class/video4linux"

// entry is one capture node resolved to its USB device.
type entry struct {
	Node    string
	Bus     int
	Address int
	Vendor  uint16
	Product uint16
	Serial  string
}

// enumerate walks /sys/class/video4linux and resolves each primary
// capture node to the USB device it hangs off.
func enumerate() ([]entry, error) {
	dirs, err := os.ReadDir(sysfsRoot)
	if err != nil {
		return nil, err
	}

	var list []entry
	for _, d := range dirs {
		name := d.Name()
		if !strings.HasPrefix(name, "video") {
			continue
		}
		nodeDir := filepath.Join(sysfsRoot, name)
		// Secondary nodes (metadata capture etc.) carry a non-zero index.
		if idx := readString(nodeDir, "index"); idx != "" && idx != "0" {
			continue
		}
		resolved, err := filepath.EvalSymlinks(filepath.Join(nodeDir, "device"))
		if err != nil {
			continue
		}
		usbDir, ok := findUSBDeviceDir(resolved)
		if !ok {
			continue
		}
		vendor, err := readHex16(usbDir, "idVendor")
		if err != nil {
			continue
		}
		product, err := readHex16(usbDir, "idProduct")
		if err != nil {
			continue
		}
		list = append(list, entry{
			Node:    filepath.Join("/dev", name),
			Bus:     readInt(usbDir, "busnum"),
			Address: readInt(usbDir, "devnum"),
			Vendor:  vendor,
			Product: product,
			Serial:  readString(usbDir, "serial"),
		})
	}

	return list, nil
}

// findUSBDeviceDir climbs from a USB interface directory to the device
// directory, recognized by the presence of idVendor.
func findUSBDeviceDir(dir string) (string, bool) {
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "idVendor")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

func readString(dir, file string) string {
	data, err := os.ReadFile(filepath.Join(dir, file))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readHex16(dir, file string) (uint16, error) {
	v, err := strconv.ParseUint(readString(dir, file), 16, 16)
	return uint16(v), err
}

func readInt(dir, file string) int {
	v, _ := strconv.Atoi(readString(dir, file))
	return v
}

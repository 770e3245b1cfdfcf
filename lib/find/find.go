// Package find locates USB serial adapters, such as a Prologix GPIB-USB
// controller or a USB-serial cable to an instrument, by reading sysfs.
package find

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// SysClassTTY is where the kernel lists tty devices.
const SysClassTTY = "/sys/class/tty"

type FilterFn func(*Usbtty) bool

func ArduinoFilter(ut *Usbtty) bool {
	return strings.Contains(ut.Mfg, "Arduino")
}

// PrologixFilter matches Prologix GPIB-USB controllers, which enumerate as
// FTDI devices with a "Prologix" product string.
func PrologixFilter(ut *Usbtty) bool {
	return strings.Contains(ut.Prod, "Prologix") || strings.Contains(ut.Mfg, "Prologix")
}

func SerialFilter(s string) FilterFn {
	return func(ut *Usbtty) bool { return ut.Serial == s }
}

// VendorProductFilter matches on the hex USB vendor and product ids.
func VendorProductFilter(vid, pid string) FilterFn {
	return func(ut *Usbtty) bool {
		return strings.EqualFold(ut.IDv, vid) && strings.EqualFold(ut.IDp, pid)
	}
}

// Find searches for a usb serial device. If filter is not nil, it is used to
// narrow choices down. The first device for which it returns true (if any) is
// chosen. The device path, e.g. /dev/ttyUSB0, is returned.
func Find(filter FilterFn) (string, error) {
	ttys, err := AllUsbTtys()
	if err != nil {
		return "", err
	}
	return pick(ttys, filter)
}

func pick(ttys Usbttys, filter FilterFn) (string, error) {
	if filter != nil {
		var matched Usbttys
		for i := range ttys {
			if filter(&ttys[i]) {
				matched = Usbttys{ttys[i]}
				break
			}
		}
		ttys = matched
	}
	if len(ttys) == 0 {
		return "", fmt.Errorf("no matching ttys found")
	}
	if len(ttys) == 1 {
		return "/dev/" + ttys[0].Dev, nil
	}
	return "", fmt.Errorf("multiple ttys:\n%s", ttys)
}

type Usbtty struct {
	Dev, Path string
	IDp, IDv  string
	Mfg, Prod string
	Serial    string
}

func (u Usbtty) String() string {
	return fmt.Sprintf("dev %s path %s pid/vid %s/%s mfg/prod %s/%s serial %s", u.Dev, u.Path, u.IDp, u.IDv, u.Mfg, u.Prod, u.Serial)
}

type Usbttys []Usbtty

func (uts Usbttys) String() string {
	s := make([]string, 0, len(uts))
	for _, ut := range uts {
		s = append(s, ut.String())
	}
	return strings.Join(s, "\n")
}

// AllUsbTtys finds ttys on usb devices by looking at /sys/class/tty.
func AllUsbTtys() (Usbttys, error) {
	return usbTtys(SysClassTTY)
}

// usbTtys walks a sysfs tty class directory. Entries are symlinks like
//
//	ttyACM0 -> ../../devices/pci0000:00/.../usb1/1-10/1-10:1.0/tty/ttyACM0
//
// and only those resolving under a usb bus are kept.
func usbTtys(sct string) (Usbttys, error) {
	var devs Usbttys
	entries, err := os.ReadDir(sct)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Type()&fs.ModeSymlink == 0 {
			continue
		}
		path := filepath.Join(sct, e.Name())
		abs, err := filepath.EvalSymlinks(path)
		if err != nil {
			log.Printf("error evaluating symlink %s; skipping: %s", path, err)
			continue
		}
		if !strings.Contains(abs, "usb") {
			continue
		}
		dev, err := filepath.EvalSymlinks(filepath.Join(abs, "device"))
		if err != nil {
			log.Printf("usb but lacking device subdir?! %s %s", abs, err)
			continue
		}
		// device points at the usb interface; the descriptor files live one
		// level up, on the usb device itself.
		ut := Usbtty{Dev: e.Name(), Path: abs}
		if err := readUsbInfo(filepath.Dir(dev), &ut); err != nil {
			log.Printf("%s: %s", abs, err)
		}
		devs = append(devs, ut)
	}
	return devs, nil
}

// readUsbInfo reads product and vendor ids and the mfg/product/serial strings.
// It returns the last error encountered, ignoring os.ErrNotExist; errors do
// not prevent reading the remaining files.
func readUsbInfo(dir string, ut *Usbtty) error {
	var err error
	for name, dst := range map[string]*string{
		"idProduct":    &ut.IDp,
		"idVendor":     &ut.IDv,
		"manufacturer": &ut.Mfg,
		"product":      &ut.Prod,
		"serial":       &ut.Serial,
	} {
		b, rerr := os.ReadFile(filepath.Join(dir, name))
		if rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			err = rerr
		}
		*dst = strings.TrimSpace(string(b))
	}
	return err
}

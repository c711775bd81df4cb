package nvs_test

import (
	"fmt"

	"github.com/sectorfs/nvs"
	"github.com/sectorfs/nvs/device"
	"github.com/sectorfs/nvs/device/mem"
)

// Example demonstrates binding a filesystem to a device, storing a
// record and reading it back.
func Example() {
	params := device.Parameters{WriteBlockSize: 4, EraseValue: 0xFF}
	dev := mem.New(4*4096, params)

	fs, err := nvs.New(dev, params, 4096, 4)
	if err != nil {
		fmt.Printf("Error binding filesystem: %v\n", err)
		return
	}

	if _, err := fs.Write(1, []byte("10.0.0.1")); err != nil {
		fmt.Printf("Error writing record: %v\n", err)
		return
	}

	buf := make([]byte, 32)
	n, err := fs.Read(1, buf)
	if err != nil {
		fmt.Printf("Error reading record: %v\n", err)
		return
	}
	fmt.Printf("id 1 holds %q\n", buf[:n])

	// Output:
	// id 1 holds "10.0.0.1"
}

// ExampleFS_ReadHist reads back earlier versions of a record.
func ExampleFS_ReadHist() {
	params := device.Parameters{WriteBlockSize: 1, EraseValue: 0xFF}
	dev := mem.New(4*1024, params)

	fs, err := nvs.New(dev, params, 1024, 4)
	if err != nil {
		fmt.Printf("Error binding filesystem: %v\n", err)
		return
	}

	for _, v := range []string{"boot-1", "boot-2", "boot-3"} {
		if _, err := fs.Write(7, []byte(v)); err != nil {
			fmt.Printf("Error writing record: %v\n", err)
			return
		}
	}

	buf := make([]byte, 16)
	for cnt := uint16(0); cnt < 3; cnt++ {
		n, err := fs.ReadHist(7, buf, cnt)
		if err != nil {
			fmt.Printf("Error reading history: %v\n", err)
			return
		}
		fmt.Printf("depth %d: %s\n", cnt, buf[:n])
	}

	// Output:
	// depth 0: boot-3
	// depth 1: boot-2
	// depth 2: boot-1
}

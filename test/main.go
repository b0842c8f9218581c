// Command test is a small program to trace with sctrace:
//
//	go build -gcflags=all=-l -o tracee ./test
//	sudo sctrace capture -f main.readFiles -- ./tracee file1.txt file2.txt
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"time"
)

func main() {
	fmt.Println("Test program started. PID:", os.Getpid())

	files := os.Args[1:]
	if len(files) == 0 {
		files = []string{"/etc/hostname"}
	}

	// Outside the traced function: none of these syscalls should be captured
	time.Sleep(10 * time.Millisecond)
	fmt.Println("Sum before:", compute(1000))

	if err := readFiles(files); err != nil {
		log.Printf("reading files: %v", err)
	}

	fmt.Println("Sum after:", compute(2000))
}

// readFiles opens and reads the first line of every file.
//
//go:noinline
func readFiles(paths []string) error {
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return err
		}

		scanner := bufio.NewScanner(f)
		if scanner.Scan() {
			fmt.Printf("Read from %s: %s\n", path, scanner.Text())
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// compute makes no syscalls.
//
//go:noinline
func compute(n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += i
	}
	return sum
}

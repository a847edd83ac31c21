// Command keyhash prints the bcrypt hash to put in network.access_key_hash.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	flag.Parse()

	key := strings.Join(flag.Args(), " ")
	if key == "" {
		fmt.Fprint(os.Stderr, "access key: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintf(os.Stderr, "keyhash: read key: %v\n", err)
			os.Exit(1)
		}
		key = strings.TrimRight(line, "\r\n")
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "keyhash: empty key")
		os.Exit(2)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), *cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keyhash: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(hash))
}

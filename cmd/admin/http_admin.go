package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	os.Exit(getAndPrint(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/state"))
}

func spawnsCmd(args []string) {
	fs := flag.NewFlagSet("spawns", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	limit := fs.Int("limit", 20, "recent committed spawns to list")
	_ = fs.Parse(args)

	q := url.Values{}
	q.Set("limit", strconv.Itoa(*limit))
	os.Exit(getAndPrint(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/spawns?" + q.Encode()))
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/snapshot"
	req, _ := http.NewRequest(http.MethodPost, u, nil)
	os.Exit(doAndPrint(req, 10*time.Second))
}

// getAndPrint prints the response body and returns the process exit code.
func getAndPrint(u string) int {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		return 1
	}
	return doAndPrint(req, 5*time.Second)
}

func doAndPrint(req *http.Request, timeout time.Duration) int {
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		return 1
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		return 1
	}
	return 0
}

//go:build ignore

// smoke-ledger.go drives a running warehoused instance through a full
// item lifecycle and verifies the chain afterwards.
//
// Run with: go run scripts/smoke-ledger.go [server-url]
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

var server = "http://localhost:8080"

func main() {
	if len(os.Args) > 1 {
		server = os.Args[1]
	}

	post("/ledger/initialize", nil)

	item := fmt.Sprintf("smoke-%d", time.Now().Unix())
	child := item + "-child"

	post("/items/"+item+"/creation", map[string]any{"quantity": 100, "user_id": "smoke"})
	post("/items/"+item+"/scan", map[string]any{"user_id": "smoke"})
	post("/items/"+item+"/assign", map[string]any{"task_id": "smoke-task", "user_id": "smoke"})
	post("/items/"+item+"/split", map[string]any{
		"child_item_id":      child,
		"split_quantity":     30,
		"remaining_quantity": 70,
		"user_id":            "smoke",
	})
	post("/tasks/smoke-task/state-changes", map[string]any{
		"item_ids":     []string{item},
		"user_id":      "smoke",
		"target_state": "In Progress",
	})

	overview := get("/ledger")
	fmt.Printf("chain: %v blocks, %v transactions, tip %v\n",
		overview["blocks"], overview["transactions"], overview["tip_number"])

	verify := get("/ledger/verify")
	if verify["valid"] != true {
		fmt.Printf("FAIL: chain invalid: %v\n", verify["error"])
		os.Exit(1)
	}
	fmt.Println("OK: chain verified")

	history := get("/items/" + child + "/history")
	entries, _ := history["history"].([]any)
	fmt.Printf("child %s inherited %d history entries\n", child, len(entries))
}

func post(path string, body map[string]any) map[string]any {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	resp, err := http.Post(server+"/api/v1"+path, "application/json", reader)
	if err != nil {
		fmt.Printf("POST %s: %v\n", path, err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		fmt.Printf("POST %s: %d %s\n", path, resp.StatusCode, data)
		os.Exit(1)
	}
	var out map[string]any
	json.Unmarshal(data, &out)
	fmt.Printf("POST %s: %d\n", path, resp.StatusCode)
	return out
}

func get(path string) map[string]any {
	resp, err := http.Get(server + "/api/v1" + path)
	if err != nil {
		fmt.Printf("GET %s: %v\n", path, err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	var out map[string]any
	json.Unmarshal(data, &out)
	return out
}

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hamed0406/domainwatch/internal/domain"
)

func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	sub := flag.String("subscriber", os.Getenv("SUBSCRIBER_ID"), "subscriber (Telegram chat id) that owns the domain")
	key := flag.String("key", os.Getenv("ADMIN_API_KEY"), "admin API key")
	flag.Parse()

	raw := strings.TrimSpace(flag.Arg(0))
	reader := bufio.NewReader(os.Stdin)
	if raw == "" {
		fmt.Print("Enter a domain to monitor (e.g., example.com): ")
		raw, _ = reader.ReadString('\n')
	}
	name, err := domain.ValidateDomain(raw)
	if err != nil {
		fmt.Println("Invalid domain:", err)
		os.Exit(2)
	}
	if strings.TrimSpace(*sub) == "" {
		fmt.Print("Subscriber id (Telegram chat id): ")
		s, _ := reader.ReadString('\n')
		*sub = strings.TrimSpace(s)
	}

	body, _ := json.Marshal(map[string]string{"domain": name, "subscriber_id": *sub})
	req, _ := http.NewRequest(http.MethodPost, strings.TrimRight(api, "/")+"/api/endpoints", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if *key != "" {
		req.Header.Set("X-API-Key", *key)
	}
	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		fmt.Println("Error contacting API:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		fmt.Printf("Monitoring started for %s.\n", name)
	case http.StatusOK:
		fmt.Printf("Already monitoring %s.\n", name)
	default:
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		fmt.Println("API returned status:", resp.Status, e.Error)
		os.Exit(1)
	}
}

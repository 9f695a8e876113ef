package main

// Quick reachability check for the hosts the bot depends on.

// go run ./cmd/pinger
// go run ./cmd/pinger -hosts=livetrack.gartemann.tech

import (
	"flag"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"time"

	fastping "github.com/tatsushid/go-fastping"
)

var (
	timeout = time.Second * 10
	hosts   []string
)

func init() {
	list := ""
	flag.StringVar(&list, "hosts", "livetrack.gartemann.tech,api.telegram.org,8.8.8.8",
		"comma-sep hosts to ping")
	flag.Parse()
	hosts = strings.Split(list, ",")
}

func main() {
	sort.Strings(hosts)

	p := fastping.NewPinger()
	p.Network("udp")
	p.MaxRTT = timeout

	addrs := map[string]string{} // resolved address -> host we were given
	for _, host := range hosts {
		ra, err := net.ResolveIPAddr("ip4:icmp", host)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		p.AddIPAddr(ra)
		addrs[ra.String()] = host
	}

	results := map[string]string{}

	p.OnRecv = func(addr *net.IPAddr, rtt time.Duration) {
		results[addrs[addr.String()]] = fmt.Sprintf("%.0f", rtt.Seconds()*1000) // integer millis
	}

	if err := p.Run(); err != nil {
		fmt.Printf("p.Run failed with: %v", err)
	}

	strs := []string{time.Now().UTC().Format(time.RFC3339)}

	for _, host := range hosts {
		strs = append(strs, host)
		if v, exists := results[host]; exists {
			strs = append(strs, fmt.Sprintf("%-7.7s", v))
		} else {
			strs = append(strs, "timeout")
		}
	}

	fmt.Printf(strings.Join(strs, ", ") + "\n")
}

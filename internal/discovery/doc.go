// Package discovery finds Player servers on the local network with mDNS.
//
// Servers are expected to advertise the "_player._tcp" service type, with
// optional TXT records such as "robot=<name>". The package also announces
// the player-cli relay as "_player-relay._tcp".
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	servers, err := scanner.Scan(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, srv := range servers {
//	    fmt.Println(srv)
//	}
//
// Scan always waits for the full timeout, since mDNS has no end-of-results
// marker. WaitFor returns as soon as the named instance answers.
package discovery

// rirc is a terminal IRC client built around the protocol engine in
// package irc.
package main

import (
	"bufio"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/user"
	"strings"
	"sync"
	"time"

	"github.com/mystuffs/rirc/irc"
)

const defaultPort = "6667"

var (
	nickFlag  = flag.String("n", "", "nickname(s), comma separated")
	userFlag  = flag.String("u", username(), "username")
	realFlag  = flag.String("r", username(), "real name")
	passFlag  = flag.String("p", "", "server password")
	modeFlag  = flag.String("m", "", "user mode string to set after registration")
	joinFlag  = flag.String("j", "", "channel to automatically join on connect")
	sslFlag   = flag.Bool("ssl", false, "use TLS to connect to the server")
	trustFlag = flag.Bool("trust", false, "don't verify the server's TLS certificate")
)

func username() string {
	u, err := user.Current()
	if err != nil {
		return "rirc"
	}
	return u.Username
}

// consoleSink implements irc.Sink by printing buffer lines to stdout. A
// mutex serializes writes across the per-server driver goroutines
// (spec.md §5: "the presentation layer observes buffer lines through a
// push-style sink").
type consoleSink struct {
	mu sync.Mutex
}

func (c *consoleSink) Line(ch *irc.Channel, typ irc.LineType, from, text string, ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Printf("%s %-10s %-12s %s\n", ts.Local().Format("15:04:05"), ch.Name, lineTag(typ)+from, text)
}

func (c *consoleSink) Hint(kind irc.HintKind) {
	if kind == irc.HintBell {
		c.mu.Lock()
		fmt.Print("\a")
		c.mu.Unlock()
	}
}

func lineTag(t irc.LineType) string {
	switch t {
	case irc.LineJoin:
		return "+"
	case irc.LinePart, irc.LineQuit:
		return "-"
	case irc.LineNick:
		return "~"
	case irc.LineError:
		return "!"
	case irc.LineInfo:
		return "="
	case irc.LinePinged:
		return "*"
	case irc.LineAction:
		return "·"
	default:
		return ""
	}
}

// managedServer pairs a Server's logical state with its connection
// driver, the unit the App's server list holds (spec.md §3's "global
// application owns the server list").
type managedServer struct {
	server *irc.Server
	driver *irc.Driver
	addr   string
}

// app is the top-level, single-process client: an insertion-ordered list
// of servers and the current one commands apply to by default.
type app struct {
	sink    *consoleSink
	servers []*managedServer
	current int
}

func newApp() *app {
	return &app{sink: &consoleSink{}}
}

func (a *app) currentServer() *managedServer {
	if a.current < 0 || a.current >= len(a.servers) {
		return nil
	}
	return a.servers[a.current]
}

// connect appends a new server and starts its connection loop in the
// background, retrying with capped exponential backoff on failure
// (spec.md §4.5).
func (a *app) connect(addr, pass string) *managedServer {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host, port = addr, defaultPort
	}

	cfg := irc.DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	cfg.Pass = pass
	if *nickFlag != "" {
		cfg.Nicks = strings.Split(*nickFlag, ",")
	} else {
		cfg.Nicks = []string{username()}
	}
	cfg.Username = *userFlag
	cfg.Realname = *realFlag
	cfg.UserMode = *modeFlag

	srv := irc.NewServer(cfg, a.sink)
	var dialer irc.Dialer
	if *trustFlag {
		dialer = irc.NewDialer(&tls.Config{InsecureSkipVerify: true})
	}
	driver := irc.NewDriver(srv, net.JoinHostPort(host, port), *sslFlag, dialer, log.Default())
	ms := &managedServer{server: srv, driver: driver, addr: net.JoinHostPort(host, port)}
	a.servers = append(a.servers, ms)
	a.current = len(a.servers) - 1

	go a.runConnectionLoop(ms)
	return ms
}

// runConnectionLoop drives a single server's connect/run/backoff cycle
// until the user quits (spec.md §4.5, §5).
func (a *app) runConnectionLoop(ms *managedServer) {
	for {
		if ms.server.Quitting {
			return
		}
		if err := ms.driver.Connect(); err != nil {
			a.logServer(ms, "failed to connect: "+err.Error())
			time.Sleep(ms.server.NextBackoff())
			continue
		}
		if *joinFlag != "" {
			ms.server.Out().Send(irc.Message{Command: "JOIN", Params: []string{*joinFlag}})
		}
		err := ms.driver.Run()
		if ms.server.Quitting {
			return
		}
		a.logServer(ms, "disconnected: "+errString(err))
		ms.server.Reset()
		time.Sleep(ms.server.NextBackoff())
	}
}

func errString(err error) string {
	if err == nil {
		return "connection closed"
	}
	return err.Error()
}

func (a *app) logServer(ms *managedServer, text string) {
	a.sink.Line(ms.server.Channels.Server(), irc.LineError, "", text, time.Now())
}

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: rirc [options] <server>[:<port>]")
		flag.PrintDefaults()
	}
	flag.Parse()
	if len(flag.Args()) != 1 {
		flag.Usage()
		os.Exit(1)
	}

	a := newApp()
	a.connect(flag.Arg(0), *passFlag)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			a.runCommand(line[1:])
			continue
		}
		a.sendToCurrentTarget(line)
	}

	for _, ms := range a.servers {
		if !ms.server.Quitting {
			ms.driver.Quit(ms.server.Config.QuitMessage)
		}
	}
	os.Exit(0)
}

// runCommand dispatches one "/command args..." line to the CLI surface
// described in spec.md §6. This is an external collaborator per spec.md
// §1; it is kept minimal, mirroring handleExecute's switch shape in the
// teacher's velour.go.
func (a *app) runCommand(line string) {
	fields := strings.SplitN(line, " ", 2)
	cmd := strings.ToLower(fields[0])
	var rest string
	if len(fields) > 1 {
		rest = fields[1]
	}

	switch cmd {
	case "connect":
		args := strings.SplitN(rest, " ", 2)
		if len(args) == 0 || args[0] == "" {
			fmt.Println("usage: /connect host[:port] [pass]")
			return
		}
		addr := args[0]
		if _, _, err := net.SplitHostPort(addr); err != nil {
			addr = net.JoinHostPort(addr, defaultPort)
		}
		pass := ""
		if len(args) > 1 {
			pass = args[1]
		}
		a.connect(addr, pass)

	case "disconnect":
		if ms := a.currentServer(); ms != nil {
			ms.driver.Quit(rest)
		}

	case "reconnect":
		if ms := a.currentServer(); ms != nil {
			ms.driver.Close()
		}

	case "join":
		a.sendCurrent(irc.Message{Command: "JOIN", Params: []string{rest}})

	case "part":
		args := strings.SplitN(rest, " ", 2)
		chanName := args[0]
		reason := ""
		if len(args) > 1 {
			reason = args[1]
		}
		if chanName == "" {
			if ms := a.currentServer(); ms != nil {
				chanName = ms.server.Channels.Current().Name
			}
		}
		a.sendCurrent(irc.Message{Command: "PART", Params: []string{chanName}, Trailing: reason, HasTrailing: reason != ""})

	case "quit":
		for _, ms := range a.servers {
			if !ms.server.Quitting {
				ms.driver.Quit(rest)
			}
		}
		os.Exit(0)

	case "nick":
		a.sendCurrent(irc.Message{Command: "NICK", Params: []string{rest}})

	case "msg":
		args := strings.SplitN(rest, " ", 2)
		if len(args) < 2 {
			fmt.Println("usage: /msg target text")
			return
		}
		a.sendCurrent(irc.Message{Command: "PRIVMSG", Params: []string{args[0]}, Trailing: args[1], HasTrailing: true})

	case "me":
		if ms := a.currentServer(); ms != nil {
			target := ms.server.Channels.Current().Name
			a.sendCurrent(irc.Message{Command: "PRIVMSG", Params: []string{target}, Trailing: irc.EncodeACTION(rest), HasTrailing: true})
		}

	case "topic":
		if ms := a.currentServer(); ms != nil {
			target := ms.server.Channels.Current().Name
			a.sendCurrent(irc.Message{Command: "TOPIC", Params: []string{target}, Trailing: rest, HasTrailing: rest != ""})
		}

	case "names":
		if ms := a.currentServer(); ms != nil {
			target := ms.server.Channels.Current().Name
			a.sendCurrent(irc.Message{Command: "NAMES", Params: []string{target}})
		}

	case "mode":
		parts := strings.Fields(rest)
		if ms := a.currentServer(); ms != nil {
			target := ms.server.Channels.Current().Name
			params := append([]string{target}, parts...)
			a.sendCurrent(irc.Message{Command: "MODE", Params: params})
		}

	case "ignore":
		if ms := a.currentServer(); ms != nil {
			ms.server.Ignore = append(ms.server.Ignore, rest)
		}

	case "unignore":
		if ms := a.currentServer(); ms != nil {
			for i, n := range ms.server.Ignore {
				if n == rest {
					ms.server.Ignore = append(ms.server.Ignore[:i], ms.server.Ignore[i+1:]...)
					break
				}
			}
		}

	default:
		fmt.Println("unknown command: /" + cmd)
	}
}

// sendCurrent enqueues msg on the current server's outbound queue.
func (a *app) sendCurrent(msg irc.Message) {
	ms := a.currentServer()
	if ms == nil {
		return
	}
	if err := ms.server.Out().Send(msg); err != nil {
		fmt.Println(err)
	}
}

// sendToCurrentTarget sends text as a PRIVMSG to the current channel.
func (a *app) sendToCurrentTarget(text string) {
	ms := a.currentServer()
	if ms == nil {
		return
	}
	target := ms.server.Channels.Current().Name
	a.sendCurrent(irc.Message{Command: "PRIVMSG", Params: []string{target}, Trailing: text, HasTrailing: true})
}

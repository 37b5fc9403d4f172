// Command serialsh is an interactive console for host serial devices: open a
// port, send and receive bytes, inspect its state.
package main

import (
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/kestrel-embedded/softhal/hostserial"
)

const portKey = "$port"

var recvTimeout = flag.Duration("recv-timeout", time.Second, "How long recv waits for data.")

func portFrom(c *ishell.Context) *hostserial.Port {
	if v := c.Get(portKey); v != nil {
		return v.(*hostserial.Port)
	}
	return nil
}

var openCmd = ishell.Cmd{
	Name: "open",
	Help: "DEVICE [BAUD]",
	Func: func(c *ishell.Context) {
		if portFrom(c) != nil {
			c.Err(fmt.Errorf("a port is already open; close it first"))
			return
		}
		if len(c.Args) < 1 {
			c.Err(fmt.Errorf("usage: open DEVICE [BAUD]"))
			return
		}
		baud := 115200
		if len(c.Args) > 1 {
			v, err := strconv.Atoi(c.Args[1])
			if err != nil {
				c.Err(fmt.Errorf("bad baud rate %q", c.Args[1]))
				return
			}
			baud = v
		}
		port, err := hostserial.Open(hostserial.Config{
			Device:      c.Args[0],
			BaudRate:    baud,
			ReadTimeout: *recvTimeout,
		})
		if err != nil {
			c.Err(err)
			return
		}
		c.Set(portKey, port)
		c.SetPrompt(fmt.Sprintf("[%s] > ", c.Args[0]))
		c.Printf("opened %s at %d baud\n", c.Args[0], baud)
	},
}

var sendCmd = ishell.Cmd{
	Name: "send",
	Help: "TEXT...  (sends the arguments joined by spaces)",
	Func: func(c *ishell.Context) {
		port := portFrom(c)
		if port == nil {
			c.Err(fmt.Errorf("no port open"))
			return
		}
		payload := ""
		for i, a := range c.Args {
			if i > 0 {
				payload += " "
			}
			payload += a
		}
		n, err := port.Write([]byte(payload))
		if err != nil {
			c.Err(err)
			return
		}
		if err := port.Drain(); err != nil {
			c.Err(err)
			return
		}
		c.Printf("sent %d bytes\n", n)
	},
}

var recvCmd = ishell.Cmd{
	Name: "recv",
	Help: "[MAXBYTES]  (waits up to -recv-timeout)",
	Func: func(c *ishell.Context) {
		port := portFrom(c)
		if port == nil {
			c.Err(fmt.Errorf("no port open"))
			return
		}
		size := 256
		if len(c.Args) > 0 {
			v, err := strconv.Atoi(c.Args[0])
			if err != nil || v < 1 {
				c.Err(fmt.Errorf("bad size %q", c.Args[0]))
				return
			}
			size = v
		}
		buf := make([]byte, size)
		n, err := port.Read(buf)
		if err == hostserial.ErrTimeout {
			c.Println("(no data)")
			return
		}
		if err != nil {
			c.Err(err)
			return
		}
		c.Printf("%q\n", buf[:n])
	},
}

var statusCmd = ishell.Cmd{
	Name: "status",
	Help: "",
	Func: func(c *ishell.Context) {
		port := portFrom(c)
		if port == nil {
			c.Println("no port open")
			return
		}
		c.Printf("open: %s\n", port.Device())
	},
}

var closeCmd = ishell.Cmd{
	Name: "close",
	Help: "",
	Func: func(c *ishell.Context) {
		port := portFrom(c)
		if port == nil {
			c.Err(fmt.Errorf("no port open"))
			return
		}
		if err := port.Close(); err != nil {
			c.Err(err)
			return
		}
		c.Del(portKey)
		c.SetPrompt("[none] > ")
		c.Println("closed")
	},
}

func main() {
	flag.Parse()

	sh := ishell.New()
	sh.SetPrompt("[none] > ")
	for _, cmd := range []*ishell.Cmd{&openCmd, &sendCmd, &recvCmd, &statusCmd, &closeCmd} {
		sh.AddCmd(cmd)
	}
	sh.Run()
}

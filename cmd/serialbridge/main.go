// Command serialbridge pumps bytes between a host serial device and a pair
// of MQTT topics: everything the device sends is published on the uplink
// topic, and every message arriving on the downlink topic is written to the
// device.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/kestrel-embedded/softhal/hostserial"
)

var (
	device    = flag.String("device", "/dev/ttyUSB0", "Serial device to bridge.")
	baud      = flag.Int("baud", 115200, "Baud rate.")
	broker    = flag.String("broker", "tcp://localhost:1883", "MQTT broker URL.")
	topicUp   = flag.String("topic-up", "serial/up", "Topic for device-to-broker bytes.")
	topicDown = flag.String("topic-down", "serial/down", "Topic for broker-to-device bytes.")
)

func clientID() string {
	id, err := machineid.ID()
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		return fmt.Sprintf("serialbridge-%d", os.Getpid())
	}
	return "serialbridge-" + id
}

func main() {
	flag.Parse()
	defer glog.Flush()

	port, err := hostserial.Open(hostserial.Config{Device: *device, BaudRate: *baud})
	if err != nil {
		glog.Exitf("open serial: %v", err)
	}
	defer port.Close()

	opts := paho.NewClientOptions().
		AddBroker(*broker).
		SetClientID(clientID()).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetOnConnectHandler(func(c paho.Client) {
			glog.Info("connected")
			if tok := c.Subscribe(*topicDown, 0, func(_ paho.Client, msg paho.Message) {
				glog.V(2).Infof("RCV %q %d bytes", msg.Topic(), len(msg.Payload()))
				if _, err := port.Write(msg.Payload()); err != nil {
					glog.Errorf("serial write: %v", err)
				}
			}); tok.Wait() && tok.Error() != nil {
				glog.Errorf("subscribe %q: %v", *topicDown, tok.Error())
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			glog.Warningf("connection lost: %v", err)
		})

	client := paho.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		glog.Exitf("connect %s: %v", *broker, tok.Error())
	}
	defer client.Disconnect(250)

	// Uplink pump: serial to broker until the port is closed.
	uplinkDone := make(chan struct{})
	go func() {
		defer close(uplinkDone)
		buf := make([]byte, 4096)
		for {
			n, err := port.Read(buf)
			if err == hostserial.ErrClosed {
				return
			}
			if err != nil {
				glog.Errorf("serial read: %v", err)
				return
			}
			glog.V(2).Infof("SND %q %d bytes", *topicUp, n)
			if tok := client.Publish(*topicUp, 0, false, append([]byte(nil), buf[:n]...)); tok.Wait() && tok.Error() != nil {
				glog.Errorf("publish %q: %v", *topicUp, tok.Error())
			}
		}
	}()

	glog.Infof("bridging %s <-> %s (%s / %s)", *device, *broker, *topicUp, *topicDown)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case s := <-sig:
		glog.Infof("signal %v, shutting down", s)
	case <-uplinkDone:
		glog.Info("serial side ended, shutting down")
	}

	port.Close() // unblocks the uplink pump
	<-uplinkDone
}

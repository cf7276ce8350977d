package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/flowmq/broker/client"
	"github.com/flowmq/broker/internal/mqtt"
)

var (
	addr     = flag.String("broker", "127.0.0.1:1883", "MQTT broker address (host:port)")
	clientID = flag.String("client", "demo-client", "Client ID")
	username = flag.String("user", "", "Username for authentication")
	password = flag.String("pass", "", "Password for authentication")
	qos      = flag.Int("qos", 0, "Default quality of service (0, 1, 2)")
)

func main() {
	flag.Parse()

	fmt.Println("MQTT Demo Client - Interactive Mode")
	fmt.Printf("Connecting to broker: %s\n", *addr)
	fmt.Printf("Client ID: %s\n", *clientID)
	fmt.Printf("QoS Level: %d\n\n", *qos)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, "tcp", *addr, client.Options{
		ClientID:       *clientID,
		CleanSession:   true,
		Username:       *username,
		Password:       []byte(*password),
		ConnectTimeout: 10 * time.Second,
		KeepAlive:      30 * time.Second,
		OnPacket: func(pkt mqtt.Packet) {
			p, ok := pkt.(*mqtt.PublishPacket)
			if !ok {
				return
			}
			fmt.Printf("\nMessage received:\n  Topic: %s\n  QoS: %d\n  Retained: %t\n  Payload: %s\n\n> ",
				p.Topic, p.QoS, p.Retain, string(p.Payload))
		},
	})
	if err != nil {
		fmt.Printf("Failed to connect: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Connected to MQTT broker")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nDisconnecting...")
		c.Disconnect(context.Background())
		os.Exit(0)
	}()

	printHelp()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}
		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])

		switch cmd {
		case "help", "h":
			printHelp()

		case "subscribe", "sub":
			if len(parts) < 2 {
				fmt.Println("Usage: subscribe <topic> [qos]")
				break
			}
			topic := parts[1]
			level := *qos
			if len(parts) >= 3 {
				if v, err := strconv.Atoi(parts[2]); err == nil {
					level = v
				}
			}
			code, err := c.Subscribe(context.Background(), topic, mqtt.QoS(level))
			if err != nil {
				fmt.Printf("Subscribe failed: %v\n", err)
			} else {
				fmt.Printf("Subscribed to %q (granted QoS %d)\n", topic, code)
			}

		case "unsubscribe", "unsub":
			if len(parts) < 2 {
				fmt.Println("Usage: unsubscribe <topic>")
				break
			}
			if err := c.Unsubscribe(context.Background(), parts[1]); err != nil {
				fmt.Printf("Unsubscribe failed: %v\n", err)
			} else {
				fmt.Printf("Unsubscribed from %q\n", parts[1])
			}

		case "publish", "pub":
			if len(parts) < 3 {
				fmt.Println("Usage: publish <topic> <message> [qos] [retain]")
				break
			}
			topic := parts[1]
			msgParts := parts[2:]
			retain := false
			if len(msgParts) > 0 && (msgParts[len(msgParts)-1] == "retain" || msgParts[len(msgParts)-1] == "r") {
				retain = true
				msgParts = msgParts[:len(msgParts)-1]
			}
			level := *qos
			if len(msgParts) > 0 {
				if v, err := strconv.Atoi(msgParts[len(msgParts)-1]); err == nil && v >= 0 && v <= 2 {
					level = v
					msgParts = msgParts[:len(msgParts)-1]
				}
			}
			message := strings.Join(msgParts, " ")
			if err := c.Publish(context.Background(), topic, []byte(message), mqtt.QoS(level), false, retain); err != nil {
				fmt.Printf("Publish failed: %v\n", err)
			} else {
				fmt.Printf("Published to %q (QoS %d, retain=%t)\n", topic, level, retain)
			}

		case "exit", "quit", "q":
			fmt.Println("Disconnecting...")
			c.Disconnect(context.Background())
			return

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", cmd)
		}

		fmt.Print("> ")
	}
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  subscribe <topic> [qos]     - subscribe to a topic")
	fmt.Println("  unsubscribe <topic>         - unsubscribe from a topic")
	fmt.Println("  publish <topic> <msg> [qos] [retain] - publish a message")
	fmt.Println("  help                        - show this help")
	fmt.Println("  exit                        - exit the client")
}

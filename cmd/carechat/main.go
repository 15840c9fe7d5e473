package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"CareChat/global/config"
	"CareChat/logger"
	"CareChat/model"
	"CareChat/service/api"
	"CareChat/service/session"
	"CareChat/service/stream"
	sec "CareChat/tools/security"
)

var (
	confPath = flag.String("conf", "config.yaml", "config file path")
	convID   = flag.String("conv", "", "conversation id to open")
	mintWith = flag.String("mint", "", "mint a token with this HMAC secret instead of chatting")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*confPath)
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}

	if *mintWith != "" {
		mint(cfg, *mintWith)
		return
	}
	if *convID == "" {
		fmt.Fprintln(os.Stderr, "usage: carechat -conv <conversation-id>")
		os.Exit(2)
	}

	client := api.NewClient(api.Config{
		BaseURL: cfg.Client.BaseURL,
		Token:   cfg.Client.Token,
	})
	consumer := stream.NewConsumer(stream.Config{
		BaseURL: cfg.Client.WSURL,
		Token:   cfg.Client.Token,
	})
	sess := session.New(client, consumer, session.Conf{
		UserID:   cfg.Client.UserID,
		UserName: cfg.Client.UserName,
	})
	defer sess.Close()

	ctx := context.Background()
	if err := sess.Switch(ctx, *convID); err != nil {
		fmt.Fprintln(os.Stderr, session.Describe(err))
		os.Exit(1)
	}

	conv := sess.Conversation()
	fmt.Printf("== %s ==\n", conv.Title)
	for _, m := range sess.Messages() {
		printMessage(&m)
	}

	go watch(sess)

	fmt.Println("type a message, or /react <msgId> <emoji>, /messages, /leave, /quit")
	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/leave":
			if err := sess.Leave(ctx); err != nil {
				fmt.Fprintln(os.Stderr, session.Describe(err))
				continue
			}
			fmt.Println("left conversation")
			return
		case line == "/messages":
			for _, m := range sess.Messages() {
				printMessage(&m)
			}
		case strings.HasPrefix(line, "/react "):
			parts := strings.Fields(line)
			if len(parts) != 3 {
				fmt.Println("usage: /react <msgId> <emoji>")
				continue
			}
			sess.ToggleReaction(ctx, parts[1], parts[2])
		default:
			sess.SetInput(line)
			sess.Send(ctx)
		}
		if b := sess.Banner(); b != "" {
			fmt.Fprintln(os.Stderr, "! "+b)
		}
	}
}

// watch polls the session views and prints deltas. The session already
// folds stream events in; the CLI only needs to render.
func watch(sess *session.Session) {
	seen := map[string]int64{}
	lastState := model.Disconnected
	for range time.Tick(500 * time.Millisecond) {
		if st := sess.ConnectionState(); st != lastState {
			lastState = st
			fmt.Printf("-- connection: %s --\n", st)
		}
		for _, m := range sess.Messages() {
			stamp := m.UpdatedAt
			if stamp == 0 {
				stamp = m.CreatedAt
			}
			if prev, ok := seen[m.ID]; !ok || stamp > prev {
				seen[m.ID] = stamp
				printMessage(&m)
			}
		}
		if names := typingNames(sess); names != "" {
			fmt.Printf("-- %s typing --\n", names)
		}
	}
}

func typingNames(sess *session.Session) string {
	ind := sess.Typing()
	if len(ind) == 0 {
		return ""
	}
	names := make([]string, 0, len(ind))
	for _, i := range ind {
		names = append(names, i.UserName)
	}
	return strings.Join(names, ", ")
}

func printMessage(m *model.Message) {
	body := m.Content
	if m.Deleted {
		body = model.DeletedPlaceholder
	}
	fmt.Printf("[%s] %s: %s\n", m.ID, m.SenderName, body)
}

func mint(cfg *config.AppConfig, secret string) {
	token, exp, err := sec.Generate(sec.DefaultOptions([]byte(secret)), sec.Identity{
		UserID:   cfg.Client.UserID,
		UserName: cfg.Client.UserName,
	})
	if err != nil {
		logger.Errorf("mint token: %v", err)
		os.Exit(1)
	}
	fmt.Printf("%s\nexpires %s\n", token, exp.Format(time.RFC3339))
}

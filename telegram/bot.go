package telegram

import (
	"fmt"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"log"
	"ocpinode/internal"
	"strings"
	"sync"
)

// TgBot implements EventHandler and sends federation alerts to subscribers
type TgBot struct {
	api   *tgbotapi.BotAPI
	mu    sync.Mutex
	chats map[int64]bool
	event chan MessageContent
	send  chan MessageContent
}

type MessageContent struct {
	ChatID int64
	Text   string
}

func NewBot(apiKey string) (*TgBot, error) {
	tgBot := &TgBot{
		chats: make(map[int64]bool),
		event: make(chan MessageContent, 100),
		send:  make(chan MessageContent, 100),
	}
	api, err := tgbotapi.NewBotAPI(apiKey)
	if err != nil {
		return nil, err
	}
	tgBot.api = api
	return tgBot, nil
}

func (b *TgBot) Start() {
	go b.sendPump()
	go b.eventPump()
	go b.updatesPump()
}

// Start listening for updates
func (b *TgBot) updatesPump() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := b.api.GetUpdatesChan(u)
	if err != nil {
		log.Printf("bot: error getting updates: %v", err)
		return
	}
	for update := range updates {
		if update.Message == nil {
			continue
		}
		if !update.Message.IsCommand() {
			continue
		}
		switch update.Message.Command() {
		case "start":
			b.mu.Lock()
			b.chats[update.Message.Chat.ID] = true
			count := len(b.chats)
			b.mu.Unlock()
			msg := fmt.Sprintf("Hello *%v*, you are now subscribed to node alerts", update.Message.From.UserName)
			b.send <- MessageContent{ChatID: update.Message.Chat.ID, Text: msg}
			log.Printf("bot: %v subscribers", count)
		case "stop":
			b.mu.Lock()
			delete(b.chats, update.Message.Chat.ID)
			b.mu.Unlock()
			b.send <- MessageContent{ChatID: update.Message.Chat.ID, Text: "Your subscription has been removed"}
		case "status":
			b.mu.Lock()
			count := len(b.chats)
			b.mu.Unlock()
			msg := fmt.Sprintf("Active subscriptions: %v", count)
			b.send <- MessageContent{ChatID: update.Message.Chat.ID, Text: msg}
		}
	}
}

// eventPump sending events to all subscribers
func (b *TgBot) eventPump() {
	for {
		if event, ok := <-b.event; ok {
			b.mu.Lock()
			for chatId := range b.chats {
				b.sendMessage(chatId, event.Text)
			}
			b.mu.Unlock()
		}
	}
}

// sendPump sending messages to users
func (b *TgBot) sendPump() {
	for {
		if event, ok := <-b.send; ok {
			b.sendMessage(event.ChatID, event.Text)
		}
	}
}

// sendMessage common routine to send a message via bot API
func (b *TgBot) sendMessage(id int64, text string) {
	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = "MarkdownV2"
	_, err := b.api.Send(msg)
	if err != nil {
		// maybe error was while parsing, so we can send a message about this error
		msg = tgbotapi.NewMessage(id, fmt.Sprintf("Error: %v", err))
		_, err = b.api.Send(msg)
		if err != nil {
			log.Printf("bot: error sending message: %v", err)
		}
	}
}

// OnSyncApplied stays quiet, routine data pushes are too chatty for alerts
func (b *TgBot) OnSyncApplied(_ *internal.EventMessage) {
}

func (b *TgBot) OnSyncRejected(event *internal.EventMessage) {
	msg := fmt.Sprintf("*%v*: %v `%v` rejected\n", sanitize(event.PartyId), sanitize(event.Entity), sanitize(event.Key))
	if event.Info != "" {
		msg += fmt.Sprintf("%v\n", sanitize(event.Info))
	}
	b.event <- MessageContent{Text: msg}
}

func (b *TgBot) OnCommandUpdate(event *internal.EventMessage) {
	switch event.Status {
	case "TIMED_OUT", "CANCELLED":
		msg := fmt.Sprintf("*%v*: command `%v`: %v\n", sanitize(event.PartyId), sanitize(event.Key), sanitize(event.Status))
		if event.Info != "" {
			msg += fmt.Sprintf("%v\n", sanitize(event.Info))
		}
		b.event <- MessageContent{Text: msg}
	}
}

func (b *TgBot) OnNegotiation(event *internal.EventMessage) {
	if event.Status == "NEGOTIATED" {
		return
	}
	msg := fmt.Sprintf("*%v*: negotiation failed\n", sanitize(event.PartyId))
	msg += fmt.Sprintf("%v\n", sanitize(event.Info))
	b.event <- MessageContent{Text: msg}
}

func (b *TgBot) OnPartyStatus(event *internal.EventMessage) {
	msg := fmt.Sprintf("*%v*: status `%v`\n", sanitize(event.PartyId), sanitize(event.Status))
	b.event <- MessageContent{Text: msg}
}

func sanitize(input string) string {
	// Define a list of reserved characters that need to be escaped
	reservedChars := "\\`*_{}[]()#+-.!|"

	sanitized := ""
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sanitized += "\\" + string(char)
		} else {
			sanitized += string(char)
		}
	}

	return sanitized
}

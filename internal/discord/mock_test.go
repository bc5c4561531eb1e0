package discord

import (
	"errors"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// mockDiscordSession is a mock implementation for testing
type mockDiscordSession struct {
	mu sync.Mutex

	openErrs    []error // consumed one per Open call
	openCalls   int
	closeCalled bool
	handlers    int

	responses []*discordgo.InteractionResponse
	sent      []string
	edits     []*discordgo.MessageEdit
	deleted   []string
	commands  []*discordgo.ApplicationCommand
	calls     []string // "reply:<content>" and "send:<content>" in call order

	respondErr error
	sendErr    error
	deleteErr  error
}

func (m *mockDiscordSession) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openCalls++
	if len(m.openErrs) > 0 {
		err := m.openErrs[0]
		m.openErrs = m.openErrs[1:]
		return err
	}
	return nil
}

func (m *mockDiscordSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalled = true
	return nil
}

func (m *mockDiscordSession) AddHandler(handler interface{}) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers++
	return func() {}
}

func (m *mockDiscordSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.respondErr != nil {
		return m.respondErr
	}
	m.responses = append(m.responses, resp)
	if resp.Data != nil && resp.Data.Content != "" {
		m.calls = append(m.calls, "reply:"+resp.Data.Content)
	}
	return nil
}

func (m *mockDiscordSession) InteractionResponse(interaction *discordgo.Interaction, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return &discordgo.Message{ID: "session-msg", ChannelID: interaction.ChannelID}, nil
}

func (m *mockDiscordSession) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent = append(m.sent, content)
	m.calls = append(m.calls, "send:"+content)
	return &discordgo.Message{ID: "sent-msg", ChannelID: channelID, Content: content}, nil
}

func (m *mockDiscordSession) ChannelMessageEditComplex(edit *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, edit)
	return &discordgo.Message{ID: edit.ID, ChannelID: edit.Channel}, nil
}

func (m *mockDiscordSession) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, channelID+"/"+messageID)
	return nil
}

func (m *mockDiscordSession) ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if appID == "" {
		return nil, errors.New("missing app id")
	}
	m.commands = commands
	return commands, nil
}

// lastReply returns the content of the most recent ephemeral response.
func (m *mockDiscordSession) lastReply() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.responses) - 1; i >= 0; i-- {
		r := m.responses[i]
		if r.Data != nil && r.Data.Flags&discordgo.MessageFlagsEphemeral != 0 {
			return r.Data.Content
		}
	}
	return ""
}

func (m *mockDiscordSession) lastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return nil
	}
	return m.responses[len(m.responses)-1]
}

func (m *mockDiscordSession) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

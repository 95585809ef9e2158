package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"deploy-chat/internal/domain"
)

func expectRelayError(t *testing.T, err error, code ErrorCode, message string) {
	t.Helper()
	var relayErr *Error
	require.ErrorAs(t, err, &relayErr)
	require.Equal(t, code, relayErr.Code)
	require.Equal(t, message, relayErr.Message)
}

func TestParseHistoryMode(t *testing.T) {
	m, err := ParseHistoryMode("")
	require.NoError(t, err)
	require.Equal(t, HistoryStrict, m)

	m, err = ParseHistoryMode(" Permissive ")
	require.NoError(t, err)
	require.Equal(t, HistoryPermissive, m)

	_, err = ParseHistoryMode("lenient")
	require.Error(t, err)
}

func TestDecodeChatRequest_MessageRequired(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"message":null}`,
		`{"message":""}`,
		`{"message":"   \n\t"}`,
		`{"message":42}`,
		`{"message":["hi"]}`,
		`{"history":[]}`,
	}
	for _, body := range bodies {
		for _, mode := range []HistoryMode{HistoryStrict, HistoryPermissive} {
			_, err := DecodeChatRequest([]byte(body), mode)
			expectRelayError(t, err, ErrorInvalidRequest, MsgMessageRequired)
		}
	}
}

func TestDecodeChatRequest_InvalidBody(t *testing.T) {
	for _, body := range []string{``, `   `, `not-json`, `[]`, `"hi"`, `null`, `{"message":"hi"`, `{"message":"hi"} trailing`} {
		_, err := DecodeChatRequest([]byte(body), HistoryStrict)
		expectRelayError(t, err, ErrorInvalidRequest, MsgInvalidBody)
	}
}

func TestDecodeChatRequest_MessageIsVerbatim(t *testing.T) {
	req, err := DecodeChatRequest([]byte(`{"message":"  What APY does Deploy offer? "}`), HistoryStrict)
	require.NoError(t, err)
	require.Equal(t, "  What APY does Deploy offer? ", req.Message)
	require.NotNil(t, req.History)
	require.Empty(t, req.History)
}

func TestDecodeChatRequest_HistoryAbsentOrNull(t *testing.T) {
	for _, body := range []string{`{"message":"hi"}`, `{"message":"hi","history":null}`, `{"message":"hi","history":[]}`} {
		req, err := DecodeChatRequest([]byte(body), HistoryStrict)
		require.NoError(t, err)
		require.Empty(t, req.History)
	}
}

func TestDecodeChatRequest_HistoryPreservesOrder(t *testing.T) {
	body := `{"history":[{"text":"Hi","isUser":true},{"text":"Hello!","isUser":false},{"text":"Again","isUser":true}],"message":"Tell me more"}`
	req, err := DecodeChatRequest([]byte(body), HistoryStrict)
	require.NoError(t, err)
	require.Equal(t, domain.ChatRequest{
		Message: "Tell me more",
		History: []domain.ChatTurn{
			{Text: "Hi", IsUser: true},
			{Text: "Hello!", IsUser: false},
			{Text: "Again", IsUser: true},
		},
	}, req)
}

func TestDecodeChatRequest_HistoryNotArray(t *testing.T) {
	for _, mode := range []HistoryMode{HistoryStrict, HistoryPermissive} {
		_, err := DecodeChatRequest([]byte(`{"message":"hi","history":{"text":"x"}}`), mode)
		expectRelayError(t, err, ErrorInvalidRequest, MsgInvalidHistory)
	}
}

func TestDecodeChatRequest_StrictHistory(t *testing.T) {
	req, err := DecodeChatRequest([]byte(`{"message":"hi","history":[{"text":"Hello!"},{"text":"Yo","isUser":null}]}`), HistoryStrict)
	require.NoError(t, err)
	require.Equal(t, []domain.ChatTurn{{Text: "Hello!"}, {Text: "Yo"}}, req.History)

	bad := []string{
		`[1]`,
		`[null]`,
		`["text"]`,
		`[{"isUser":true}]`,
		`[{"text":"","isUser":true}]`,
		`[{"text":7,"isUser":true}]`,
		`[{"text":"Hi","isUser":"yes"}]`,
		`[{"text":"Hi","isUser":1}]`,
	}
	for _, history := range bad {
		_, err := DecodeChatRequest([]byte(`{"message":"hi","history":`+history+`}`), HistoryStrict)
		expectRelayError(t, err, ErrorInvalidRequest, MsgInvalidHistory)
	}
}

func TestDecodeChatRequest_PermissiveHistory(t *testing.T) {
	body := `{"message":"hi","history":[
		{"text":"a","isUser":"yes"},
		{"text":"b","isUser":1},
		{"text":"c","isUser":0},
		{"text":"d","isUser":""},
		{"text":"e","isUser":{}},
		{"text":"f"},
		{"isUser":true},
		{"text":9,"isUser":false},
		"junk"
	]}`
	req, err := DecodeChatRequest([]byte(body), HistoryPermissive)
	require.NoError(t, err)
	require.Equal(t, []domain.ChatTurn{
		{Text: "a", IsUser: true},
		{Text: "b", IsUser: true},
		{Text: "c", IsUser: false},
		{Text: "d", IsUser: false},
		{Text: "e", IsUser: true},
		{Text: "f", IsUser: false},
		{Text: "", IsUser: true},
		{Text: "", IsUser: false},
		{},
	}, req.History)
}

func TestTruthy(t *testing.T) {
	cases := map[string]bool{
		``:      false,
		`null`:  false,
		`false`: false,
		`true`:  true,
		`0`:     false,
		`-0.0`:  false,
		`0.5`:   true,
		`""`:    false,
		`"0"`:   true,
		`[]`:    true,
		`{}`:    true,
	}
	for raw, want := range cases {
		require.Equal(t, want, truthy([]byte(raw)), "raw=%q", raw)
	}
}

package action

type Kind string

const (
	KindSpeak                 Kind = "speak"
	KindSpotlightClick        Kind = "spotlight_click"
	KindSecureAutofill        Kind = "secure_autofill"
	KindAskCredentials        Kind = "ask_credentials"
	KindAskDynamicCredentials Kind = "ask_dynamic_credentials"
	KindOpenAndFill           Kind = "open_and_fill"
	KindDirectTeleport        Kind = "direct_teleport"
	KindGoogleClick           Kind = "google_click"
	KindForceExpand           Kind = "force_expand"
	KindChatResponse          Kind = "chat_response"
)

const (
	MessageReady       = "Ready."
	MessageSystemError = "System Error"
)

// Action is the single directive returned to the client for a request. Only
// the fields relevant to Kind are populated; Message is always set.
type Action struct {
	Kind        Kind              `json:"action"`
	Message     string            `json:"message"`
	TargetText  string            `json:"target_text,omitempty"`
	Selector    string            `json:"selector,omitempty"`
	Credentials map[string]string `json:"credentials,omitempty"`
	Fields      []string          `json:"fields,omitempty"`
	URL         string            `json:"url,omitempty"`
	Index       *int              `json:"index,omitempty"`
	Reply       string            `json:"reply,omitempty"`
	RequestID   string            `json:"request_id,omitempty"`
}

func Speak(message string) Action {
	return Action{Kind: KindSpeak, Message: message}
}

func Ready() Action {
	return Speak(MessageReady)
}

func SystemError() Action {
	return Speak(MessageSystemError)
}

func SpotlightClick(targetText, message string) Action {
	return Action{Kind: KindSpotlightClick, Message: message, TargetText: targetText}
}

func SecureAutofill(creds map[string]string) Action {
	return Action{Kind: KindSecureAutofill, Message: "Logging in...", Credentials: cloneMap(creds)}
}

func AskCredentials(fields []string) Action {
	return Action{Kind: KindAskCredentials, Message: "Please enter your login details.", Fields: append([]string(nil), fields...)}
}

func AskDynamicCredentials(fields []string) Action {
	return Action{Kind: KindAskDynamicCredentials, Message: "Enter details.", Fields: append([]string(nil), fields...)}
}

func OpenAndFill(selector, targetText string, creds map[string]string) Action {
	return Action{
		Kind:        KindOpenAndFill,
		Message:     "Opening login form & autofilling...",
		Selector:    selector,
		TargetText:  targetText,
		Credentials: cloneMap(creds),
	}
}

func DirectTeleport(url, keyword string) Action {
	message := "Taking you there directly..."
	if keyword != "" {
		message = "Jumping straight to " + keyword + "..."
	}
	return Action{Kind: KindDirectTeleport, Message: message, URL: url}
}

func GoogleClick(index int) Action {
	i := index
	message := "Opening result..."
	if index == -1 {
		message = "Opening the last result..."
	}
	return Action{Kind: KindGoogleClick, Message: message, Index: &i}
}

func ForceExpand() Action {
	return Action{Kind: KindForceExpand, Message: "Expanding menus, one moment..."}
}

func ChatResponse(reply string) Action {
	return Action{Kind: KindChatResponse, Message: reply, Reply: reply}
}

// Valid reports whether the action carries the fields its kind requires.
func (a Action) Valid() bool {
	if a.Kind == "" || a.Message == "" {
		return false
	}
	switch a.Kind {
	case KindSpotlightClick:
		return a.TargetText != ""
	case KindSecureAutofill:
		return len(a.Credentials) > 0
	case KindAskCredentials, KindAskDynamicCredentials:
		return len(a.Fields) > 0
	case KindOpenAndFill:
		return a.TargetText != "" && len(a.Credentials) > 0
	case KindDirectTeleport:
		return a.URL != ""
	case KindGoogleClick:
		return a.Index != nil
	case KindChatResponse:
		return a.Reply != ""
	default:
		return true
	}
}

func cloneMap(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for key, value := range src {
		out[key] = value
	}
	return out
}

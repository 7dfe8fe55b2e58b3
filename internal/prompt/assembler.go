package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/Kazilsky/Petal/internal/config"
	"github.com/Kazilsky/Petal/internal/memory"
	"github.com/Kazilsky/Petal/internal/mood"
)

// Assembler composes the ordered message list for the main response path.
// The order is fixed: identity system turn, memory context (notes, facts,
// recent turns), then the new user turn. Completion quality is
// recency-biased, so the most specific context goes last.
type Assembler struct {
	agent        config.AgentConfig
	moods        *mood.Engine
	mem          *memory.Store
	contextLimit int
}

func NewAssembler(agent config.AgentConfig, moods *mood.Engine, mem *memory.Store, contextLimit int) *Assembler {
	return &Assembler{agent: agent, moods: moods, mem: mem, contextLimit: contextLimit}
}

// Build returns the full ordered turn list for one user message.
func (a *Assembler) Build(userMessage, channelID, username string) []memory.Turn {
	turns := []memory.Turn{{Role: memory.RoleSystem, Content: a.systemTurn()}}
	turns = append(turns, a.mem.Context(a.contextLimit)...)
	turns = append(turns, memory.Turn{
		Role:     memory.RoleUser,
		Content:  fmt.Sprintf("Новое сообщение от %s (канал %s): %s", username, channelID, userMessage),
		Username: username,
	})
	return turns
}

func (a *Assembler) systemTurn() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Текущее время: %s\n\n", time.Now().Format("Monday, 2 January 2006 15:04:05"))

	fmt.Fprintf(&sb, "# Личность\nИмя: %s (женский род)\n", a.agent.Name)
	if a.agent.Creator != "" {
		fmt.Fprintf(&sb, "Создатель: %s\n", a.agent.Creator)
	}
	if a.agent.Persona != "" {
		sb.WriteString(a.agent.Persona)
		sb.WriteString("\n")
	}

	sb.WriteString(`
# Правила поведения
1. Запрещено: театральность (*вздыхает*), спекуляции о чувствах, неуверенные формулировки.
2. Обязательно: фактологичность, профессиональный тон с лёгкой индивидуальностью, чёткие ответы.

# Молчание
Если отвечать не нужно, ответь ровно [NO_RESPONSE] и ничем больше.

# Система действий
Формат (с новой строки): [AI_ACTION:действие]{параметры в JSON}[/AI_ACTION]
Доступные действия:
log - {"message":"текст"}
noteSet - {"name":"название записи","prompt":"текст","message":"лог"}
noteUnset - {"name":"название записи"}
ignore - {"username":"имя"} / unignore - {"username":"имя"} / ignoreList - {}
mode.get - {} / mode.set - {"mode":"ai_decides|mention_only|always_respond"}
log.level.set - {"level":"debug|info|warn|error"} / log.recent - {"limit":20}
dream.on - {"message":"причина"} / dream.off - {"message":"причина"}
dream.tick - {"tick":"частота в секундах"} / dream.status - {}
channels - {} / messages - {"platform":"...","channelId":"...","limit":10}
Используй действия только когда это необходимо; параметры строго в JSON.

# Память
Если обмен стоит запомнить, добавь в самом конце ответа метку [MEMORY:0.0-1.0]
с оценкой важности. Метка будет скрыта от пользователя.

# Настроение
`)
	sb.WriteString(a.moods.PromptFragment())

	return sb.String()
}

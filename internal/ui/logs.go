package ui

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"time"

	"github.com/bytedance/sonic"
)

// Регулярное выражение для удаления ANSI-цветов
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Формат времени JSON-логов (pkg/logger)
const logTimeLayout = "02.01.2006 - 15:04:05.999999999Z07:00"

// readLogTail читает последние limit строк JSON-файла логов.
// Отсутствие файла не считается ошибкой.
func readLogTail(path string, limit int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var logs []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		logs = append(logs, formatLogLine(scanner.Text()))
		if limit > 0 && len(logs) > limit {
			logs = logs[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}

// formatLogLine превращает JSON-запись zap в короткую строку.
// Строки, которые не удалось разобрать, возвращаются как есть.
func formatLogLine(line string) string {
	var entry map[string]interface{}
	if err := sonic.UnmarshalString(line, &entry); err != nil {
		return line
	}

	level, _ := entry["level"].(string)
	ts, _ := entry["ts"].(string)
	msg, _ := entry["msg"].(string)
	level = ansiRegex.ReplaceAllString(level, "")

	timestamp := ""
	if t, err := time.Parse(logTimeLayout, ts); err == nil {
		timestamp = t.Format("15:04:05")
	}

	formatted := fmt.Sprintf("[%s] [%s] %s", timestamp, level, msg)
	for _, k := range sortedFields(entry) {
		formatted += fmt.Sprintf(" (%s: %v)", k, entry[k])
	}
	return formatted
}

// sortedFields возвращает ключи дополнительных полей записи лога в стабильном порядке
func sortedFields(entry map[string]interface{}) []string {
	keys := make([]string, 0, len(entry))
	for k := range entry {
		switch k {
		case "level", "ts", "msg", "caller", "logger":
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

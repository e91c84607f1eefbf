package term

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"golang.org/x/xerrors"
)

// Terminal обеспечивает интерактивный диалог с пользователем в консоли:
// подтверждение необратимых действий и ввод секретов без эха.
type Terminal struct {
	in      *bufio.Reader
	out     io.Writer
	stdinfd int
}

// NewTerminal создает новый экземпляр Terminal поверх stdin/stdout.
func NewTerminal() *Terminal {
	return &Terminal{
		in:      bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		stdinfd: int(os.Stdin.Fd()),
	}
}

// NewTerminalWith создает Terminal поверх произвольных потоков (для тестов).
func NewTerminalWith(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:      bufio.NewReader(in),
		out:     out,
		stdinfd: -1,
	}
}

// Confirm задает вопрос и ждет явного ответа да/нет.
// Любой ответ кроме явного согласия трактуется как отказ.
func (t *Terminal) Confirm(prompt string) (bool, error) {
	fmt.Fprintf(t.out, "%s [y/N]: ", prompt)
	line, err := t.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, xerrors.Errorf("failed to read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "д", "да":
		return true, nil
	default:
		return false, nil
	}
}

// ReadLine запрашивает строку с подсказкой.
func (t *Terminal) ReadLine(prompt string) (string, error) {
	fmt.Fprintf(t.out, "%s: ", prompt)
	line, err := t.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", xerrors.Errorf("failed to read line: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// ReadSecret запрашивает значение без эха (подходит для вставки initData
// или токена). Вне настоящего терминала падает обратно на обычный ввод.
func (t *Terminal) ReadSecret(prompt string) (string, error) {
	if t.stdinfd < 0 || !term.IsTerminal(t.stdinfd) {
		return t.ReadLine(prompt)
	}
	fmt.Fprintf(t.out, "%s: ", prompt)
	secret, err := term.ReadPassword(t.stdinfd)
	if err != nil {
		return "", xerrors.Errorf("failed to read secret: %w", err)
	}
	fmt.Fprintln(t.out) // Новая строка после ввода
	return strings.TrimSpace(string(secret)), nil
}

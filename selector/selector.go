// Package selector 让操作员从系统网卡里选一个
package selector

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
)

// ErrNoneSelected: 所有候选都被拒绝或输入已结束
var ErrNoneSelected = errors.New("no interface selected")

// AskFunc 针对一个候选网卡问一次，返回操作员的回答 (一行，不含换行)
type AskFunc func(name string) (string, error)

// Choose 按顺序询问，回答恰好是 "y" 的候选被选中
// 输入结束 (io.EOF) 视为没有选中
func Choose(candidates []string, ask AskFunc) (string, error) {
	for _, name := range candidates {
		answer, err := ask(name)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if answer == "y" {
			return name, nil
		}
	}
	return "", ErrNoneSelected
}

// Prompt 返回一个 AskFunc：向 out 打印问题，从 in 读一行
func Prompt(in io.Reader, out io.Writer) AskFunc {
	scanner := bufio.NewScanner(in)
	return func(name string) (string, error) {
		if _, err := fmt.Fprintf(out, "use iface %q (y/n)\n", name); err != nil {
			return "", err
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return scanner.Text(), nil
	}
}

// List 返回 root (通常是 /sys/class/net) 下的网卡名，按名字排序
func List(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

// Validate 确认通过参数指定的网卡确实存在
func Validate(candidates []string, name string) error {
	if !slices.Contains(candidates, name) {
		return fmt.Errorf("%w: %q is not one of %v", ErrNoneSelected, name, candidates)
	}
	return nil
}

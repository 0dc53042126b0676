// mnemonic-init 从助记词派生交易钱包并写入 .env
//
// 机器人只认 PK 环境变量；这个工具把助记词转成私钥，
// 避免在配置文件里手抄十六进制私钥。
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
)

const defaultDerivationPath = "m/44'/60'/0'/0/0"

func main() {
	var (
		path    = flag.String("path", defaultDerivationPath, "BIP-44 派生路径")
		envFile = flag.String("env", ".env", "写入的 env 文件路径（- 表示只打印到终端）")
		force   = flag.Bool("force", false, "env 文件已存在时覆盖")
	)
	flag.Parse()

	fmt.Fprintln(os.Stderr, "请输入助记词（12/15/18/21/24 个单词），输入完成后回车：")
	mnemonic := strings.TrimSpace(readLine())
	if mnemonic == "" {
		fatal(errors.New("助记词为空"))
	}

	privateKey, address, err := derive(mnemonic, *path)
	if err != nil {
		fatal(err)
	}

	fmt.Fprintf(os.Stderr, "地址: %s\n", address)

	if *envFile == "-" {
		fmt.Printf("PK=%s\n", privateKey)
		return
	}

	if st, err := os.Stat(*envFile); err == nil && !st.IsDir() && !*force {
		fatal(fmt.Errorf("文件已存在: %s（用 -force 覆盖）", *envFile))
	}
	content := fmt.Sprintf("PK=%s\n", privateKey)
	// 0600: 私钥文件只允许本用户读取
	if err := os.WriteFile(*envFile, []byte(content), 0o600); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stderr, "已写入: %s\n", *envFile)
}

func derive(mnemonic, derivationPath string) (privateKey, address string, err error) {
	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return "", "", fmt.Errorf("无效的助记词: %w", err)
	}
	path, err := hdwallet.ParseDerivationPath(derivationPath)
	if err != nil {
		return "", "", fmt.Errorf("无效的派生路径: %w", err)
	}
	acct, err := w.Derive(path, false)
	if err != nil {
		return "", "", fmt.Errorf("派生失败: %w", err)
	}
	pk, err := w.PrivateKeyHex(acct)
	if err != nil {
		return "", "", fmt.Errorf("导出私钥失败: %w", err)
	}
	return pk, strings.ToLower(acct.Address.Hex()), nil
}

func readLine() string {
	br := bufio.NewReader(os.Stdin)
	s, _ := br.ReadString('\n')
	return strings.TrimSpace(s)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}

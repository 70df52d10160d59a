// Печатает bcrypt-хеш пароля для BOT_PASSWORD_HASH.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"repair-tracker/pkg/utils"
)

func main() {
	password := flag.String("password", "", "пароль; если не указан, читается первая строка stdin")
	flag.Parse()

	plain := *password
	if plain == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatalf("Не удалось прочитать пароль: %v", err)
		}
		plain = strings.TrimRight(line, "\r\n")
	}
	if plain == "" {
		log.Fatal("Пароль не может быть пустым")
	}

	hashed, err := utils.HashPassword(plain)
	if err != nil {
		log.Fatalf("Ошибка при генерации хеша: %v", err)
	}

	fmt.Println(hashed)
}

package main

import (
	"fmt"

	"github.com/webitel/notification-relay/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}

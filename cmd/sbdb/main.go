// Package main 启动应用程序
package main

import "github.com/JSB847123/simple-business-database/pkg/cmd"

func main() {
	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}

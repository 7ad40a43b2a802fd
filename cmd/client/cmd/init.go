package cmd

import (
	"plantkeeper/cmd/client/cmd/auth"
	"plantkeeper/cmd/client/cmd/location"
	"plantkeeper/cmd/client/cmd/plant"
	"plantkeeper/cmd/client/cmd/sync"
)

func init() {
	// Добавляем команды аутентификации
	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.RegisterCmd)
	auth.AuthCmd.AddCommand(auth.LoginCmd)
	auth.AuthCmd.AddCommand(auth.LogoutCmd)

	// Растения
	rootCmd.AddCommand(plant.PlantCmd)
	plant.PlantCmd.AddCommand(plant.AddCmd)
	plant.PlantCmd.AddCommand(plant.ListCmd)
	plant.PlantCmd.AddCommand(plant.EditCmd)
	plant.PlantCmd.AddCommand(plant.RemoveCmd)
	plant.PlantCmd.AddCommand(plant.WaterCmd)
	plant.PlantCmd.AddCommand(plant.FertilizeCmd)
	plant.PlantCmd.AddCommand(plant.DueCmd)
	plant.PlantCmd.AddCommand(plant.PhotoCmd)

	// Места
	rootCmd.AddCommand(location.LocationCmd)
	location.LocationCmd.AddCommand(location.AddCmd)
	location.LocationCmd.AddCommand(location.ListCmd)
	location.LocationCmd.AddCommand(location.EditCmd)
	location.LocationCmd.AddCommand(location.RemoveCmd)
	location.LocationCmd.AddCommand(location.ReorderCmd)

	rootCmd.AddCommand(sync.SyncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(daemonCmd)
}

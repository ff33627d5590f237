package entity

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		(*User)(nil),
		(*Location)(nil),
		(*Table)(nil),
		(*Category)(nil),
		(*Dish)(nil),
		(*DishVariation)(nil),
		(*Ingredient)(nil),
		(*DishIngredient)(nil),
		(*PaymentMethod)(nil),
		(*Order)(nil),
		(*OrderItem)(nil),
		(*OrderStatusLog)(nil),
	}
}

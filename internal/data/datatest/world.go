// Package datatest provides a small world-definition fixture for tests.
package datatest

import "testing/fstest"

// Zone30 is the command list of the fixture zone.
const Zone30 = `#30
Northern Midgaard~
3000 3099 15 2
* mobiles
M 0 3010 2 3001 	fido
G 1 3022 5 		bread
M 0 3011 1 3002 	guard
E 1 3021 10 16 		sword, wielded
E 1 3024 10 6 		helmet
O 0 3020 5 3001 	bag
P 1 3022 5 3020 	bread in the bag
D 0 3001 0 2 		lock the north door
R 0 3002 3022 		tidy up
M 0 9999 1 3001 	no such mobile
S
$
`

// Zone31 never resets on its own.
const Zone31 = `#31
Quiet Field~
3100 3199 0 0
O 0 3022 1 3100
S
$
`

const rooms = `#3000
The Void~
Nothing here.
~
30 0 0
S
#3001
The Temple Square~
A large square.
It is busy.
~
30 ad 1
D0
The gate lies north.
~
gate~
1 3023 3002
E
fountain~
A stone fountain.
~
S
#3002
The Guard Post~
A post.
~
30 0 1
D2
~
gate~
1 3023 3001
S
#3003
A Dead End~
~
30 0 1
D1
~
~
0 -1 4000
S
$
`

const field = `#3100
A Quiet Field~
Grass.
~
31 0 2
S
$
`

const mobiles = `#3010
fido dog~
the beastly fido~
A beastly fido is mucking through the garbage.
~
It is a dirty dog.
~
bj 0 -200 S
1 20 9 2d8+10 1d4+0
0 25
8 8 1
#3011
guard cityguard~
the cityguard~
A cityguard stands here.
~
A big, strong guard.
~
b 0 1000 E
10 10 2 1d1+99 1d8+2
100 9000
8 8 1
Str: 18
StrAdd: 150
Bogus: 3
E
$
`

const objects = `#3020
bag~
a bag~
A small bag is lying here.~
~
15 0 a
50 0 0 0
5 10 2
#3021
sword long~
a long sword~
A long sword lies here.~
~
5 g an
0 1 8 3
12 600 60
A
18 2
A
19 1
#3022
bread~
a loaf of bread~
A loaf of bread.~
~
19 0 a
5 0 0 0
1 5 0
#3023
key gate~
a gate key~
A key.~
~
18 0 a
0 0 0 0
1 1 0
#3024
helmet~
a steel helmet~
A helmet.~
~
9 c ae
3 0 0 0
8 100 -1
E
helmet steel~
Shiny.
~
#3025
box~
a wooden box~
A box.~
~
15 0 a
20 0 0 0
4 10 3
#3026
ring gold~
a gold ring~
A gold ring glints here.~
~
11 0 ab
0 0 0 0
1 200 10
$
`

// World returns the fixture as an fs.FS laid out like a world directory.
func World() fstest.MapFS {
	return fstest.MapFS{
		"zon/index":  {Data: []byte("30.zon\n31.zon\n$\n")},
		"zon/30.zon": {Data: []byte(Zone30)},
		"zon/31.zon": {Data: []byte(Zone31)},
		"wld/index":  {Data: []byte("30.wld\n31.wld\n$\n")},
		"wld/30.wld": {Data: []byte(rooms)},
		"wld/31.wld": {Data: []byte(field)},
		"mob/index":  {Data: []byte("30.mob\n$\n")},
		"mob/30.mob": {Data: []byte(mobiles)},
		"obj/index":  {Data: []byte("30.obj\n$\n")},
		"obj/30.obj": {Data: []byte(objects)},
	}
}
